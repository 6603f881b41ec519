package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultWebhookTimeout = 10 * time.Second
)

// Store key prefixes. Other consumers of the store rely on this namespacing,
// so these names are part of the wire contract.
const (
	KeyPrefixMessage           = "message:"
	KeyPrefixUserMessages      = "user:messages:"
	KeyPrefixProjectMessages   = "project:messages:"
	KeyPrefixStatus            = "notification:status:"
	KeyPrefixUserNotifications = "user:notifications:"
)

const (
	DefaultTopic         = "notifyx.notifications"
	DefaultConsumerGroup = "notifier-service-group"
)

const (
	DefaultTTLDays         = 30
	DefaultMaxPerUser      = 100
	DefaultMaxPerProject   = 1000
	DefaultDispatchWorkers = 8
	DefaultListLimit       = 20
	MaxListLimit           = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ProjectIDHeader = "X-Project-ID"
	SignatureHeader = "X-Webhook-Signature"
)
