package model

const (
	MethodCoreEcho            = "Core/echo"
	MethodCoreGetCapabilities = "Core/getCapabilities"
	MethodCoreGetSession      = "Core/getSession"
)

const (
	CapabilityCore = "urn:ietf:params:jmap:core"
	CapabilityTodo = "urn:example:params:jmap:todo"
)

type CoreCapability struct {
	MaxSizeRequest        int      `json:"maxSizeRequest"`
	MaxConcurrentUpload   int      `json:"maxConcurrentUpload"`
	MaxConcurrentDownload int      `json:"maxConcurrentDownload"`
	MaxCallsInRequest     int      `json:"maxCallsInRequest"`
	MaxObjectsInGet       int      `json:"maxObjectsInGet"`
	MaxObjectsInSet       int      `json:"maxObjectsInSet"`
	CollationAlgorithms   []string `json:"collationAlgorithms"`
}

type TodoCapability struct {
	MaxObjectsInQuery int      `json:"maxObjectsInQuery"`
	MaxObjectsInSet   int      `json:"maxObjectsInSet"`
	QuerySortOptions  []string `json:"querySortOptions"`
}

type Capabilities struct {
	Core CoreCapability `json:"urn:ietf:params:jmap:core"`
	Todo TodoCapability `json:"urn:example:params:jmap:todo"`
}

type Account struct {
	Name                string                    `json:"name"`
	IsPersonal          bool                      `json:"isPersonal"`
	IsReadOnly          bool                      `json:"isReadOnly"`
	AccountCapabilities map[string]TodoCapability `json:"accountCapabilities"`
}

// Session is the discovery document describing the server and its accounts.
type Session struct {
	Capabilities    Capabilities       `json:"capabilities"`
	Accounts        map[string]Account `json:"accounts"`
	PrimaryAccounts map[string]string  `json:"primaryAccounts"`
	Username        string             `json:"username"`
	APIURL          string             `json:"apiUrl"`
	State           string             `json:"state"`
}

// PrimaryAccount returns the primary account id for capability, falling back
// to the only account when there is exactly one.
func (s *Session) PrimaryAccount(capability string) (string, bool) {
	if id, ok := s.PrimaryAccounts[capability]; ok {
		return id, true
	}
	if len(s.Accounts) == 1 {
		for id := range s.Accounts {
			return id, true
		}
	}
	return "", false
}
