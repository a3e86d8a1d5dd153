package entity

// Address is a non-loopback IPv4 address of a host interface.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Primary bool   `json:"primary"`
}

type ServerInfo struct {
	Addresses []Address `json:"addresses"`
	Port      int       `json:"port"`
}
