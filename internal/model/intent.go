package model

// IntentKind enumerates every action the classifier can produce.
type IntentKind int

// Supported intent kinds.
const (
	IntentNone IntentKind = iota
	IntentShowPhoto
	IntentWhoIs
	IntentCVIdentify
	IntentCVDetect
	IntentCVCrop
	IntentFeedUpdate
	IntentSubRequest
	IntentSubAccept
	IntentSilentMode
	IntentFeedingStatus
	IntentProfilesCreate
	IntentProfileUpdateOne
	IntentProfilesUpdateAll
	IntentManual8PM
)

var intentNames = [...]string{
	IntentNone:              "none",
	IntentShowPhoto:         "show_photo",
	IntentWhoIs:             "who_is",
	IntentCVIdentify:        "cv_identify",
	IntentCVDetect:          "cv_detect",
	IntentCVCrop:            "cv_crop",
	IntentFeedUpdate:        "feed_update",
	IntentSubRequest:        "sub_request",
	IntentSubAccept:         "sub_accept",
	IntentSilentMode:        "silent_mode",
	IntentFeedingStatus:     "feeding_status",
	IntentProfilesCreate:    "profiles_create",
	IntentProfileUpdateOne:  "profile_update_one",
	IntentProfilesUpdateAll: "profiles_update_all",
	IntentManual8PM:         "manual_8pm",
}

func (k IntentKind) String() string {
	if k < 0 || int(k) >= len(intentNames) {
		return "unknown"
	}
	return intentNames[k]
}

// ParseIntentKind maps a wire name back to its kind.
func ParseIntentKind(s string) (IntentKind, bool) {
	for i, name := range intentNames {
		if name == s {
			return IntentKind(i), true
		}
	}
	return IntentNone, false
}

// IsAdminOnly reports whether the kind may only be issued by an administrator.
func (k IntentKind) IsAdminOnly() bool {
	switch k {
	case IntentSilentMode, IntentProfilesCreate, IntentProfileUpdateOne, IntentProfilesUpdateAll, IntentManual8PM:
		return true
	}
	return false
}

// IsVision reports whether the kind runs the vision pipeline.
func (k IntentKind) IsVision() bool {
	return k == IntentCVIdentify || k == IntentCVDetect || k == IntentCVCrop
}

// Intent is the typed result of classifying one message.
type Intent struct {
	Kind          IntentKind
	Confidence    float64
	ChannelID     string
	UserID        string
	MessageID     string
	Text          string
	HasImage      bool
	AttachmentIDs []string
	ReplyToID     string

	CatName          string
	Station          string
	Stations         []string
	Dates            []string
	PairedMessageIDs []string

	// Toggle is the requested state of an on/off command.
	Toggle bool
	// RangeStart and RangeEnd bound profile management commands.
	RangeStart int
	RangeEnd   int
}

// NewIntent returns an intent of the given kind populated from the buffered row.
func NewIntent(kind IntentKind, confidence float64, row MachineRow) Intent {
	return Intent{
		Kind:          kind,
		Confidence:    confidence,
		ChannelID:     row.ChannelID,
		UserID:        row.UserID,
		MessageID:     row.MessageID,
		Text:          row.Text,
		HasImage:      row.HasImage,
		AttachmentIDs: row.AttachmentIDs,
		ReplyToID:     row.ReplyToID,
	}
}
