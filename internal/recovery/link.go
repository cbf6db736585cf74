// Package recovery validates password-recovery deep links before the reset form is shown.
package recovery

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "buzz-client/internal/pkg/errors"
)

// Link is the session material a recovery email carries in the URL fragment.
type Link struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // zero when the link carried neither expires_at nor expires_in
	Type         string
}

// ParseLink reads the fragment of location. now anchors a relative expires_in.
func ParseLink(location string, now time.Time) (*Link, error) {
	_, fragment, found := strings.Cut(location, "#")
	if !found || strings.TrimSpace(fragment) == "" {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryMissing}
	}

	values, err := url.ParseQuery(fragment)
	if err != nil {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryMalformed, Err: err}
	}

	// The auth service redirects with an error instead of tokens when the link is spent.
	if code := values.Get("error_code"); code != "" || values.Get("error") != "" {
		reason := xerrors.RecoveryMalformed
		if code == "otp_expired" {
			reason = xerrors.RecoveryExpired
		}
		return nil, &xerrors.RecoveryLinkError{Reason: reason, Err: errorFromFragment(values)}
	}

	link := &Link{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		Type:         values.Get("type"),
	}

	if link.Type == "" {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryMissing}
	}
	if link.Type != "recovery" {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryWrongType}
	}
	if link.AccessToken == "" {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryMalformed, Err: errMissingToken}
	}

	if raw := values.Get("expires_at"); raw != "" {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryMalformed, Err: err}
		}
		link.ExpiresAt = time.Unix(sec, 0)
	} else if raw := values.Get("expires_in"); raw != "" {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryMalformed, Err: err}
		}
		link.ExpiresAt = now.Add(time.Duration(sec) * time.Second)
	}

	return link, nil
}
