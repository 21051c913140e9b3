package checkout

const (
	TopicOrderCreated   = "checkout.order.created"
	TopicPaymentWebhook = "checkout.payment.webhook"
)

// Partition key keeps every event of one order (or one gateway transaction)
// on the same partition, so consumers see them in order.
func PartitionKey(id string) []byte { return []byte(id) }
