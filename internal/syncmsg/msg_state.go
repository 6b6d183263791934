package syncmsg

// Attributes is the metadata of one monitored file
type Attributes struct {
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	Perm       string `json:"perm"`
	UID        string `json:"uid"`
	GID        string `json:"gid"`
	UserName   string `json:"user_name"`
	GroupName  string `json:"group_name"`
	Inode      uint64 `json:"inode"`
	MTime      int64  `json:"mtime"`
	HashMD5    string `json:"hash_md5"`
	HashSHA1   string `json:"hash_sha1"`
	HashSHA256 string `json:"hash_sha256"`
	Checksum   string `json:"checksum"`
}

// State is the full state of one entry
type State struct {
	Path       string     `json:"path"`
	Timestamp  int64      `json:"timestamp"`
	Attributes Attributes `json:"attributes"`
}

func NewState(path string, timestamp int64, attrs Attributes) *Message {
	return &Message{
		Component: ComponentSyscheck,
		Type:      MsgState,
		Data: &State{
			Path:       path,
			Timestamp:  timestamp,
			Attributes: attrs,
		},
	}
}
