package outbox

// Event is the envelope written to the outbox table; EventType doubles as
// the Kafka topic name.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
