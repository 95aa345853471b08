package value

// Distance identifies a kNN distance kernel. Kept in value rather than
// exec so both the index package (VA-file bound tracking) and the
// query package (wire-level KnnPredicate) can name a kernel without
// depending on the execution engine.
type Distance int

const (
	L1 Distance = iota
	L2
	L2Squared
	Cosine
	InnerProduct
	Hamming
	ChiSquared
)

func (d Distance) String() string {
	switch d {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L2Squared:
		return "L2_SQUARED"
	case Cosine:
		return "COSINE"
	case InnerProduct:
		return "INNER_PRODUCT"
	case Hamming:
		return "HAMMING"
	case ChiSquared:
		return "CHI_SQUARED"
	default:
		return "UNKNOWN"
	}
}
