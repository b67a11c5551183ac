// Package dynamo provides a DynamoDB adapter for the docbase repository port.
//
// Each logical collection maps to one table named "<database>-<collection>".
// The table's key schema decides partitioning:
//
//	hash "id"                -> unpartitioned
//	hash "<pk>", range "id"  -> partitioned on <pk>
//
// # Documents
//
// Documents are encoded with attributevalue using their `json` struct tags.
// Create is a conditional put (attribute_not_exists(id)); Upsert is an
// unconditional put.
//
// # Filters
//
// store.Filter trees are translated with the expression package and applied
// as Scan filter expressions. Where and Take follow the scan across every page.
//
// # Statements
//
// Query and QueryRows run PartiQL through ExecuteStatement. Named parameters
// written as @name are bound positionally:
//
//	rows, err := repo.QueryRows(ctx,
//		`SELECT * FROM "app-Accounts" WHERE lastName = @last`,
//		store.Params{"last": "Doe"})
//
// # Clients
//
// Register shares one *dynamodb.Client per endpoint through store.Client, so
// every collection on the same endpoint reuses the same connection pool.
package dynamo
