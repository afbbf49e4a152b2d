package domain

import "time"

// Event is a conference event row. Events are written by the external
// scraper pipeline; this service only reads them.
type Event struct {
	ID          int64      `json:"id_event"`
	URL         string     `json:"url_event"`
	Name        string     `json:"name_event"`
	Date        string     `json:"date_event"`
	Time        string     `json:"time_event"`
	Location    string     `json:"location_event"`
	Description string     `json:"description_event,omitempty"`
	Host        string     `json:"host_event"`
	Speakers    string     `json:"speakers_event,omitempty"`
	Tags        string     `json:"tags_event,omitempty"`
	Sponsors    string     `json:"sponsors,omitempty"`
	RelatedURLs string     `json:"urls_in_event,omitempty"`
	Agenda      string     `json:"agenda,omitempty"`
	AddedAt     time.Time  `json:"date_add"`
	UpdatedAt   *time.Time `json:"date_update,omitempty"`
	UpdateType  string     `json:"type_update,omitempty"`
}

// User is a bot user. ChatID is the transport-level identifier carried by
// every inbound message; ID is the internal primary key the list tables
// reference.
type User struct {
	ID              int64     `json:"id_user"`
	ChatID          int64     `json:"chat_id"`
	Username        string    `json:"username"`
	FavoriteListIDs string    `json:"favorite_list_ids"`
	CreatedAt       time.Time `json:"created_at"`
}

// Visibility of an event list.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// EventList is a user-curated set of event ids. Every user owns exactly one
// private and one public list, created lazily on first interaction. The
// member set is persisted as a comma-delimited string; use IDSet to mutate it.
type EventList struct {
	ID         int64      `json:"id_list"`
	UserID     int64      `json:"id_user"`
	Visibility Visibility `json:"visibility"`
	Name       string     `json:"name_list"`
	SecretKey  int64      `json:"key"`
	EventIDs   string     `json:"event_ids"`
}

// Members parses the persisted event-id string.
func (l *EventList) Members() IDSet {
	return ParseIDSet(l.EventIDs)
}

// Action is a single tappable button attached to an outbound message. Data
// is the opaque callback payload echoed back on a press.
type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Keyboard is rows of actions.
type Keyboard [][]Action

// Feedback is a free-text note left by a user.
type Feedback struct {
	ID        int64     `json:"id_feedback"`
	ChatID    int64     `json:"chat_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// InteractionLog is one handled inbound update, recorded for diagnosis.
type InteractionLog struct {
	ID        int64     `json:"id_log"`
	ChatID    int64     `json:"chat_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message_text"`
	Response  string    `json:"response_text"`
	Error     string    `json:"error_message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
