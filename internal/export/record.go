package export

// Record is the terminal flat representation of one message: the only shape
// this tool persists. Field names match the export consumed downstream.
type Record struct {
	ConversationID int     `json:"conversation_id"`
	CustomerName   string  `json:"customer_name"`
	CustomerEmail  string  `json:"customer_email"`
	ChannelName    string  `json:"channel_name"`
	MessageType    string  `json:"message_type"`
	SenderName     string  `json:"sender_name"`
	Content        string  `json:"content"`
	CreatedAtISO   *string `json:"created_at_iso"`
	AgentEmail     *string `json:"agent_email"`
}

const (
	unknownCustomer = "Unknown Customer"
	unknownAgent    = "Unknown Agent"

	defaultMessageType = "outgoing"
	agentSenderType    = "User"
)
