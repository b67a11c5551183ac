// Package mongodb provides a MongoDB adapter for the docbase repository port.
//
// Documents are encoded through their `json` tags into bson.M values, with
// the "id" attribute stored as _id. A sharded collection declares its shard
// key in Config.ShardKey; Get, Upsert and Remove then address documents by
// _id and shard key together.
//
// Raw statements are query documents in relaxed extended JSON whose string
// values may reference named parameters:
//
//	var out []Contact
//	err := repo.Query(ctx, `{"lastName": "@last", "dateAdded": {"$gte": "@since"}}`,
//		store.Params{"last": "Doe", "since": "2024-01-01T00:00:00Z"}, &out)
package mongodb
