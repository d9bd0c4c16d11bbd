package redis

const (
	// KeyPrefixNode is the prefix for node keys
	KeyPrefixNode = "marksync:node:"
	// KeyPrefixChildren is the prefix for the ordered child id lists
	KeyPrefixChildren = "marksync:children:"
	// KeyAllNodes is the key for the set of all node IDs
	KeyAllNodes = "marksync:nodes:all"
	// KeyNextID is the node id counter
	KeyNextID = "marksync:nodes:next_id"
	// KeySyncConfig holds the whole sync config as JSON
	KeySyncConfig = "marksync:sync_config"
	// KeyBaseline is the set of URLs present after the last successful sync
	KeyBaseline = "marksync:sync_baseline"
	// KeyBackups is the list of backups, newest first
	KeyBackups = "marksync:backups"

	// firstNodeID keeps generated ids clear of the fixed container ids
	firstNodeID = 100
)

// NodeKey returns the Redis key for a node
func NodeKey(id string) string {
	return KeyPrefixNode + id
}

// ChildrenKey returns the Redis key for a folder's child list
func ChildrenKey(id string) string {
	return KeyPrefixChildren + id
}
