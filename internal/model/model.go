// Package model defines the domain types used across the application.
package model

import "time"

// Attachment is a file attached to an inbound chat message.
type Attachment struct {
	ID          string
	URL         string
	Filename    string
	ContentType string
	Size        int
}

// IsImage reports whether the attachment carries an image.
func (a Attachment) IsImage() bool {
	return len(a.ContentType) >= 6 && a.ContentType[:6] == "image/"
}

// Message is a transport-agnostic inbound chat message.
type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	UserID      string
	UserName    string
	ReplyToID   string
	Content     string
	IsDM        bool
	MentionsBot bool
	IsAdmin     bool
	Attachments []Attachment
	CreatedAt   time.Time
}

// ImageAttachments returns the image attachments of the message.
func (m Message) ImageAttachments() []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if a.IsImage() {
			out = append(out, a)
		}
	}
	return out
}

// MachineRow is the buffered record of one inbound message.
type MachineRow struct {
	Timestamp     time.Time
	ChannelID     string
	UserID        string
	MessageID     string
	ReplyToID     string
	Text          string
	TextNorm      string
	HasImage      bool
	AttachmentIDs []string
}

// SubStatus is the lifecycle state of a substitution request.
type SubStatus string

// Supported substitution states.
const (
	SubRequested SubStatus = "requested"
	SubAccepted  SubStatus = "accepted"
	SubDeclined  SubStatus = "declined"
)

// SubRecord is one row of the feeding substitution ledger.
type SubRecord struct {
	ID        string
	Station   string
	Dates     []string
	Requester string
	Assignee  string
	Status    SubStatus
	ChannelID string
	MessageID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Feeding records that a station was serviced on a date.
type Feeding struct {
	Station   string
	Date      string
	FedBy     string
	MessageID string
	CreatedAt time.Time
}

// CatProfile is the catalog entry of a colony cat.
type CatProfile struct {
	ID                  int64
	Name                string
	PhysicalDescription string
	Behavior            string
	Location            string
	Birthday            string
	TNRStatus           string
	Sex                 string
	Nicknames           string
	LastSeenDate        string
	LastSeenTime        string
	LastSeenBy          string
	Comments            string
}

// CatPhoto is a photo of a cat kept in the catalog.
type CatPhoto struct {
	ID        int64
	CatID     int64
	URL       string
	Serial    string
	CreatedAt time.Time
}

// ProfilePost links a cat profile to the chat message that displays it.
type ProfilePost struct {
	CatID     int64
	ChannelID string
	MessageID string
	UpdatedAt time.Time
}

// PaymentStatus is the review state of an ingested dues payment.
type PaymentStatus string

// Supported payment states.
const (
	PaymentUnreviewed PaymentStatus = "unreviewed"
	PaymentMatched    PaymentStatus = "matched"
)

// Payment is a dues payment parsed from a provider notification.
type Payment struct {
	ID            int64
	Provider      string
	TxnID         string
	AmountCents   int64
	Currency      string
	PayerName     string
	PayerHandle   string
	PayerEmail    string
	Memo          string
	TSEpoch       int64
	RawSource     string
	MatchedUserID string
	MatchScore    float64
	Status        PaymentStatus
	CreatedAt     time.Time
}

// Member is a dues-paying member of the group roster.
type Member struct {
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	Handle    string `yaml:"handle"`
	DiscordID string `yaml:"discord_id"`
}
