package kettle

import "time"

// MaxDelay caps /delay/{seconds}, matching httpbin.
const MaxDelay = 10 * time.Second

type HeartbeatResponse struct {
	Time    time.Time `json:"time"`
	Host    string    `json:"host"`
	Version string    `json:"version"`
}

// StatusResponse is returned by /delay/{seconds} once the kettle is hot.
type StatusResponse struct {
	Time    time.Time `json:"time"`
	Host    string    `json:"host"`
	Version string    `json:"version"`
	DelayMS int64     `json:"delay_ms"`
}
