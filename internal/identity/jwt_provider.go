package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"chatbot-be/internal/apperr"
	"chatbot-be/internal/entity"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/repository/unitofwork"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

type signUpInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type signInInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// JWTProvider backs the identity provider contract with the user repository:
// bcrypt password hashes, HS256 access tokens, hashed refresh tokens.
// Introspection results are cached until token expiry to keep reads cheap.
type JWTProvider struct {
	uowFactory unitofwork.RepositoryFactory
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	introCache *cache.Cache
	validate   *validator.Validate
}

func NewJWTProvider(uowFactory unitofwork.RepositoryFactory, secret string, accessTTL, refreshTTL time.Duration) *JWTProvider {
	return &JWTProvider{
		uowFactory: uowFactory,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		introCache: cache.New(accessTTL, 10*time.Minute),
		validate:   validator.New(),
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (p *JWTProvider) SignUp(ctx context.Context, email, password string) (*Credentials, error) {
	if err := p.validate.Struct(signUpInput{Email: email, Password: password}); err != nil {
		return nil, apperr.NewAuthError("invalid email or password format", err)
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: email})
	if err != nil {
		return nil, apperr.NewAuthError("provider unreachable", err)
	}
	if existing != nil {
		return nil, apperr.NewAuthError("email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.NewAuthError("failed to hash password", err)
	}

	user := &entity.User{
		Id:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, apperr.NewAuthError("failed to create account", err)
	}

	return p.issue(ctx, uow, user)
}

func (p *JWTProvider) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	// Malformed credentials can never match an account, so they fail with the
	// same reason a wrong password does.
	if err := p.validate.Struct(signInInput{Email: email, Password: password}); err != nil {
		return nil, apperr.NewAuthError("invalid credentials", err)
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: email})
	if err != nil {
		return nil, apperr.NewAuthError("provider unreachable", err)
	}
	if user == nil {
		return nil, apperr.NewAuthError("invalid credentials", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.NewAuthError("invalid credentials", nil)
	}

	return p.issue(ctx, uow, user)
}

func (p *JWTProvider) issue(ctx context.Context, uow unitofwork.UnitOfWork, user *entity.User) (*Credentials, error) {
	expiresAt := time.Now().Add(p.accessTTL)
	claims := jwt.MapClaims{
		"user_id": user.Id.String(),
		"email":   user.Email,
		"exp":     expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(p.secret)
	if err != nil {
		return nil, apperr.NewAuthError("failed to sign token", err)
	}

	rawRefreshToken := uuid.New().String()
	refreshToken := &entity.UserRefreshToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		TokenHash: hashToken(rawRefreshToken),
		ExpiresAt: time.Now().Add(p.refreshTTL),
		Revoked:   false,
		CreatedAt: time.Now(),
	}
	if err := uow.UserRepository().CreateRefreshToken(ctx, refreshToken); err != nil {
		return nil, apperr.NewAuthError("failed to create session", err)
	}

	ident := entity.Identity{UserId: user.Id, Email: user.Email}
	p.introCache.Set(signedToken, ident, time.Until(expiresAt))

	return &Credentials{
		AccessToken:  signedToken,
		RefreshToken: rawRefreshToken,
		Identity:     ident,
		ExpiresAt:    expiresAt,
	}, nil
}

// SignOut revokes the remote session. The caller (session store) clears its
// local state whether or not this succeeds. When the credentials carry the
// refresh token, only that session is revoked; other devices stay signed in.
// Without one, every session for the identity is revoked.
func (p *JWTProvider) SignOut(ctx context.Context, cred *Credentials) error {
	if cred == nil {
		return nil
	}
	p.introCache.Delete(cred.AccessToken)

	uow := p.uowFactory.NewUnitOfWork(ctx)
	if cred.RefreshToken != "" {
		if err := uow.UserRepository().RevokeRefreshToken(ctx, hashToken(cred.RefreshToken)); err != nil {
			return apperr.NewAuthError("failed to revoke session", err)
		}
		return nil
	}
	if err := uow.UserRepository().RevokeAllRefreshTokens(ctx, cred.Identity.UserId); err != nil {
		return apperr.NewAuthError("failed to revoke session", err)
	}
	return nil
}

func (p *JWTProvider) Introspect(accessToken string) (*entity.Identity, time.Time, error) {
	// jwt.Parse validates exp, so an expired token fails here.
	token, err := jwt.Parse(accessToken, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, time.Time{}, apperr.NewAuthError("invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, time.Time{}, apperr.NewAuthError("invalid claims", nil)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, time.Time{}, apperr.NewAuthError("invalid claims", err)
	}

	if cached, found := p.introCache.Get(accessToken); found {
		ident := cached.(entity.Identity)
		return &ident, exp.Time, nil
	}

	userIdStr, _ := claims["user_id"].(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return nil, time.Time{}, apperr.NewAuthError("invalid claims", err)
	}
	email, _ := claims["email"].(string)

	ident := entity.Identity{UserId: userId, Email: email}
	p.introCache.Set(accessToken, ident, time.Until(exp.Time))
	return &ident, exp.Time, nil
}
