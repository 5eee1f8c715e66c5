package redis

// All keys share the "docsync:" prefix so the store can live beside other
// applications in one Redis database.
const keyPrefix = "docsync:"

// typeKey holds a JSON-encoded sync job type: docsync:type:{name}
func typeKey(name string) string { return keyPrefix + "type:" + name }

// typeNamesKey is the Set of all type names.
const typeNamesKey = keyPrefix + "type_names"

// jobKey is the Hash for a sync job: docsync:sjob:{id}. Field "status"
// mirrors the encoded job so compare-and-swap can read it cheaply.
func jobKey(id string) string { return keyPrefix + "sjob:" + id }

// jobIDsKey is the Set of all job IDs.
const jobIDsKey = keyPrefix + "sjob_ids"
