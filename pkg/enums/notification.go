package enums

import "fmt"

// NotificationTemplate references a message template rendered downstream.
type NotificationTemplate string

const (
	NotificationTemplateOrderReceipt      NotificationTemplate = "order_receipt"
	NotificationTemplateOrderNotification NotificationTemplate = "order_notification"
)

// IsValid checks whether the given template is known.
func (n NotificationTemplate) IsValid() bool {
	return n == NotificationTemplateOrderReceipt || n == NotificationTemplateOrderNotification
}

// ParseNotificationTemplate converts raw strings into NotificationTemplate.
func ParseNotificationTemplate(value string) (NotificationTemplate, error) {
	template := NotificationTemplate(value)
	if !template.IsValid() {
		return "", fmt.Errorf("invalid notification template %q", value)
	}
	return template, nil
}
