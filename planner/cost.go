package planner

import "hareql.dev/index"

// scanCost is the full-scan baseline: one I/O-weighted unit per
// expected row, since every column file page must be visited in the
// worst case.
func scanCost(rowCount int64) index.Cost {
	n := float64(rowCount)
	if n < 1 {
		n = 1
	}
	return index.Cost{CPU: n * 0.01, IO: n, Memory: n * 0.001}
}

func sampleCost(size int) index.Cost {
	n := float64(size)
	return index.Cost{CPU: n * 0.01, IO: n, Memory: n * 0.001}
}

func fetchColumnsCost(rowCount int64, nColumns int) index.Cost {
	n := float64(rowCount) * float64(nColumns)
	return index.Cost{CPU: n * 0.005, IO: n * 0.1, Memory: n * 0.001}
}

func linearScanFilterCost(rowCount int64) index.Cost {
	n := float64(rowCount)
	return index.Cost{CPU: n * 0.02, IO: n, Memory: n * 0.001}
}

// knnFullscanCost estimates a brute-force pass over every row for
// every query vector, dominating the cost model once row counts grow,
// which is exactly why IndexedKnn exists.
func knnFullscanCost(rowCount int64, numQueries int) index.Cost {
	n := float64(rowCount) * float64(numQueries)
	return index.Cost{CPU: n * 0.05, IO: n * 0.5, Memory: n * 0.002}
}

// knnIndexedCost estimates VA-SSA's signature-scan-plus-exact-reread
// cost: still linear in row count but with far smaller per-row CPU
// since most candidates are pruned on their compact signature alone.
func knnIndexedCost(rowCount int64, numQueries int) index.Cost {
	n := float64(rowCount) * float64(numQueries)
	return index.Cost{CPU: n * 0.01, IO: n * 0.05, Memory: n * 0.001}
}

func projectionCost(rowCount int64) index.Cost {
	n := float64(rowCount)
	return index.Cost{CPU: n * 0.005, Memory: n * 0.0005}
}

func limitCost(limit int64) index.Cost {
	n := float64(limit)
	if n < 0 {
		n = 0
	}
	return index.Cost{CPU: n * 0.001}
}
