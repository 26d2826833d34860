package domain

// Conference: комната, на которую указывает отсканированный QR.
type Conference struct {
	ServerURL string `json:"server_url"`
	Room      string `json:"room"`
}

func (c Conference) URL() string {
	return c.ServerURL + "/" + c.Room
}

type JoinToken struct {
	Conference Conference `json:"conference"`
	Identity   string     `json:"identity"`
	Token      string     `json:"token"`
	URL        string     `json:"url"`
}
