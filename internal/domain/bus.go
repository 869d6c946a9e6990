package domain

// MessageBus routes chat events from the platform to the pipeline loop.
type MessageBus interface {
	Publish(msg IncomingMessage)
	Subscribe() <-chan IncomingMessage
	Close()
}
