/*
Package user contains the identity carried by a realtime connection.

An Identity is derived once from the verified credential and never changes for the lifetime
of the connection that owns it.
*/
package user

import "strconv"

// Identity is the verified identity of a realtime connection.
type Identity struct {
	// ID is the numeric user id issued by the auth service.
	ID int64 `json:"id"`

	// DisplayName is the name claim from the credential, nil when the token carried none.
	DisplayName *string `json:"displayName"`

	// Token is the raw bearer credential, forwarded to collaborator services on the user's behalf.
	Token string `json:"-"`
}

// Name returns the display name claim or "" when absent.
func (i Identity) Name() string {
	if i.DisplayName == nil {
		return ""
	}
	return *i.DisplayName
}

// HasName reports whether the credential carried a non-empty display name.
func (i Identity) HasName() bool {
	return i.DisplayName != nil && *i.DisplayName != ""
}

// String returns the decimal user id, for log fields and cache keys.
func (i Identity) String() string {
	return strconv.FormatInt(i.ID, 10)
}
