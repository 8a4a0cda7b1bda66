package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// ActorClaims is the bearer token payload. Subject is the actor id.
type ActorClaims struct {
	jwt.RegisteredClaims
	Role       string   `json:"role"`
	ClinicID   string   `json:"clinic_id,omitempty"`
	CompanyIDs []string `json:"company_ids,omitempty"`
	EntityID   string   `json:"entity_id,omitempty"`
}

type AuthService interface {
	IssueToken(actor audit.ActorContext) (string, error)
	ActorFromToken(tokenString string) (audit.ActorContext, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	issuer       string
	accessTTL    time.Duration
	now          func() time.Time
}

func NewAuthService(log *logger.Logger, jwtSecretKey, issuer string, accessTTL time.Duration) AuthService {
	if log == nil {
		log = logger.Nop()
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
		issuer:       strings.TrimSpace(issuer),
		accessTTL:    accessTTL,
		now:          time.Now,
	}
}

// IssueToken signs a token for actor. Login is handled elsewhere; this is used
// by operators and tests to mint service credentials.
func (as *authService) IssueToken(actor audit.ActorContext) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}
	now := as.now()
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			Issuer:    as.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
		Role: string(actor.Role),
	}
	if actor.ClinicID != uuid.Nil {
		claims.ClinicID = actor.ClinicID.String()
	}
	for _, id := range actor.CompanyIDs {
		claims.CompanyIDs = append(claims.CompanyIDs, id.String())
	}
	if actor.EntityID != uuid.Nil {
		claims.EntityID = actor.EntityID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.jwtSecretKey)
}

func (as *authService) ActorFromToken(tokenString string) (audit.ActorContext, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return audit.ActorContext{}, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(as.now),
	}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(*jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, opts...)
	if err != nil {
		return audit.ActorContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*ActorClaims)
	if !ok || !parsed.Valid {
		return audit.ActorContext{}, ErrInvalidToken
	}
	return claims.actor()
}

func (c ActorClaims) actor() (audit.ActorContext, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return audit.ActorContext{}, fmt.Errorf("%w: bad subject: %v", ErrInvalidToken, err)
	}
	role, err := audit.ParseRole(c.Role)
	if err != nil {
		return audit.ActorContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	actor := audit.ActorContext{ID: id, Role: role}
	if actor.ClinicID, err = optionalUUID(c.ClinicID); err != nil {
		return audit.ActorContext{}, err
	}
	if actor.EntityID, err = optionalUUID(c.EntityID); err != nil {
		return audit.ActorContext{}, err
	}
	for _, raw := range c.CompanyIDs {
		cid, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return audit.ActorContext{}, fmt.Errorf("%w: bad company id: %v", ErrInvalidToken, err)
		}
		actor.CompanyIDs = append(actor.CompanyIDs, cid)
	}
	return actor, nil
}

func optionalUUID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad scope id: %v", ErrInvalidToken, err)
	}
	return id, nil
}

// SetContextFromToken attaches the token's actor, merged with any request
// metadata already on ctx.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	actor, err := as.ActorFromToken(tokenString)
	if err != nil {
		as.log.Debug("token rejected", "error", err)
		return ctx, err
	}
	actor.Meta = ctxutil.GetRequestMeta(ctx)
	return ctxutil.WithActor(ctx, actor), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
