package http

import (
	"github.com/SystAttic/TraversiumNotificationService/internal/application/notification"
	jwtinfra "github.com/SystAttic/TraversiumNotificationService/internal/infrastructure/jwt"
	"github.com/SystAttic/TraversiumNotificationService/internal/stream"
)

// Deps holds the application dependencies for the router. The notification
// service and broadcaster are built in main because the message-bus consumer
// and the bundling sweep share them.
type Deps struct {
	NotificationSvc notification.Service
	Live            *stream.Broadcaster
	JWTProvider     *jwtinfra.Provider
}
