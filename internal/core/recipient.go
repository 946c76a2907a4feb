package core

import "strconv"

// Recipient is the target of a message or typing signal: either the single
// broadcast channel or one specific user.
type Recipient struct {
	userID    int64
	broadcast bool
}

// BroadcastRecipient targets every connected user.
func BroadcastRecipient() Recipient {
	return Recipient{broadcast: true}
}

// DirectRecipient targets a single user.
func DirectRecipient(userID int64) Recipient {
	return Recipient{userID: userID}
}

// IsBroadcast reports whether the recipient is the broadcast channel.
func (r Recipient) IsBroadcast() bool {
	return r.broadcast
}

// UserID returns the targeted user id. Only meaningful when IsBroadcast is false.
func (r Recipient) UserID() int64 {
	return r.userID
}

func (r Recipient) String() string {
	if r.broadcast {
		return "all"
	}
	return strconv.FormatInt(r.userID, 10)
}
