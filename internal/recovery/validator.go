package recovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"buzz-client/internal/domain/auth"
	xerrors "buzz-client/internal/pkg/errors"
	"buzz-client/internal/pkg/jwt"

	"go.uber.org/zap"
)

var errMissingToken = errors.New("access token missing")

// Ledger records spent recovery tokens.
type Ledger interface {
	Claim(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

// TokenVerifier reads the claims of a recovery access token.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

type Validator struct {
	tokens TokenVerifier
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

func NewValidator(tokens TokenVerifier, ledger Ledger, logger *zap.Logger) *Validator {
	return &Validator{tokens: tokens, ledger: ledger, logger: logger, now: time.Now}
}

// Validate checks a recovery link end to end and returns the recovery session it carries. A
// link is accepted once; every rejection is a *xerrors.RecoveryLinkError.
func (v *Validator) Validate(ctx context.Context, location string) (*auth.Identity, error) {
	now := v.now()

	link, err := ParseLink(location, now)
	if err != nil {
		return nil, err
	}

	claims, err := v.tokens.Verify(link.AccessToken)
	if err != nil {
		reason := xerrors.RecoveryMalformed
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = xerrors.RecoveryExpired
		}
		return nil, &xerrors.RecoveryLinkError{Reason: reason, Err: err}
	}

	expiresAt := link.ExpiresAt
	if claims.ExpiresAt != nil && (expiresAt.IsZero() || claims.ExpiresAt.Time.Before(expiresAt)) {
		expiresAt = claims.ExpiresAt.Time
	}
	if expiresAt.IsZero() {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryMalformed, Err: fmt.Errorf("link carries no expiry")}
	}
	if !now.Before(expiresAt) {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryExpired}
	}

	id, err := claims.SubjectID()
	if err != nil {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryMalformed, Err: err}
	}
	// The fragment type is unsigned; the token itself must come from a recovery flow.
	if !claims.AuthenticatedBy("recovery") && !claims.AuthenticatedBy("otp") {
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryWrongType}
	}

	fresh, err := v.ledger.Claim(ctx, link.AccessToken, expiresAt.Sub(now))
	if err != nil {
		return nil, err
	}
	if !fresh {
		v.logger.Warn("recovery link reused", zap.String("identity_id", id.String()))
		return nil, &xerrors.RecoveryLinkError{Reason: xerrors.RecoveryReused}
	}

	v.logger.Info("recovery link accepted", zap.String("identity_id", id.String()))
	return &auth.Identity{
		ID:           id,
		Email:        claims.Email,
		AccessToken:  link.AccessToken,
		RefreshToken: link.RefreshToken,
		ExpiresAt:    expiresAt,
		Metadata:     claims.Metadata(),
		Recovery:     true,
	}, nil
}

func errorFromFragment(values url.Values) error {
	msg := values.Get("error_description")
	if msg == "" {
		msg = values.Get("error")
	}
	return errors.New(msg)
}
