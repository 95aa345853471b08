// Package catalogue implements the schema/entity/column DBO hierarchy,
// its transaction manager, and its lock manager: the parts of the
// engine that give the page/bufferpool/column layers a namespace,
// transactional create/drop, and concurrency control.
package catalogue

import "fmt"

// RootName is the fixed name of the catalogue itself in a fully
// qualified object name, e.g. "hareql.cottontail.test.feature".
const RootName = "hareql"

type SchemaName string
type EntityName string
type ColumnName string
type IndexName string

func schemaFqn(s SchemaName) string {
	return fmt.Sprintf("%s.%s", RootName, s)
}

func entityFqn(s SchemaName, e EntityName) string {
	return fmt.Sprintf("%s.%s.%s", RootName, s, e)
}

func columnFqn(s SchemaName, e EntityName, c ColumnName) string {
	return fmt.Sprintf("%s.%s.%s.%s", RootName, s, e, c)
}

func indexFqn(s SchemaName, e EntityName, ix IndexName) string {
	return fmt.Sprintf("%s.%s.%s#%s", RootName, s, e, ix)
}
