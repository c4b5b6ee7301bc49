package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/repos"
	"github.com/intec-ai/intec-backend/internal/requestdata"
	"github.com/intec-ai/intec-backend/internal/types"
)

type JWTClaims struct {
	jwt.RegisteredClaims
}

type AuthService interface {
	RegisterUser(ctx context.Context, user *types.User) (*types.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
) AuthService {
	return &authService{
		db:           db,
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) (*types.User, error) {
	//1) Normalize and validate input
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CPF = strings.TrimSpace(user.CPF)
	user.Name = strings.TrimSpace(user.Name)
	if user.Email == "" || user.CPF == "" || user.Name == "" || user.Password == "" {
		return nil, fmt.Errorf("name, email, cpf and password are required to register")
	}

	//2) Uniqueness checks
	emailExists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
	if err != nil {
		as.log.Warn("Failed to check if user email exists. Returning error.", "error", err)
		return nil, fmt.Errorf("failed checking user email existence: %w", err)
	}
	cpfExists, err := as.userRepo.CPFExists(ctx, nil, user.CPF)
	if err != nil {
		as.log.Warn("Failed to check if user cpf exists. Returning error.", "error", err)
		return nil, fmt.Errorf("failed checking user cpf existence: %w", err)
	}
	if emailExists || cpfExists {
		as.log.Warn("User already registered", "emailExists", emailExists, "cpfExists", cpfExists)
		return nil, fmt.Errorf("usuário já cadastrado")
	}

	//3) Hash password
	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		as.log.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)

	//4) Create user
	created, err := as.userRepo.Create(ctx, nil, user)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		as.log.Warn("Login failed: user not found", "email", email)
		return "", fmt.Errorf("credenciais inválidas")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		as.log.Warn("Login failed: password mismatch", "email", email)
		return "", fmt.Errorf("credenciais inválidas")
	}

	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		as.log.Error("Failed to sign access token", "error", err)
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil || !token.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid subject in token")
	}
	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
