package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
)

// NotificationLogger names the logger of gateway generated notifications.
const NotificationLogger = "mcpgate"

// exitNotification builds the logging notification sent to every session
// when the subprocess exits.
func exitNotification(exitCode int) ([]byte, error) {
	name := NotificationLogger
	params := schema.LoggingMessageNotificationParams{
		Level:  schema.LoggingLevelError,
		Logger: &name,
		Data: map[string]interface{}{
			"message":  fmt.Sprintf("tool server process exited with code %d", exitCode),
			"exitCode": exitCode,
		},
	}
	notification := &jsonrpc.Notification{Jsonrpc: jsonrpc.Version, Method: schema.MethodNotificationMessage}
	var err error
	if notification.Params, err = json.Marshal(params); err != nil {
		return nil, err
	}
	return json.Marshal(notification)
}
