package tools

import "go.mongodb.org/mongo-driver/bson"

// decodeArgs unmarshals a tool invocation's raw argument bytes (extended
// JSON, same as the stdio transport's request bodies) into out.
func decodeArgs(raw []byte, out any) error {
	return bson.UnmarshalExtJSON(raw, false, out)
}
