package models

import "time"

// BrandMessage is the wire format published to the brands topic. The Kafka
// message key carries the brand code as well, so consumers can log and
// partition by it without decoding the body.
type BrandMessage struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
