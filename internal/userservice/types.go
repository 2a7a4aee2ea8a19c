package userservice

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/almuhsiny/blogapi/internal/common"
)

type tokenScope string

type Role string

const (
	TokenScopeActivate      tokenScope = "token:activate"
	TokenScopeAccess        tokenScope = "token:access"
	TokenScopeRefresh       tokenScope = "token:refresh"
	TokenScopeEmailChange   tokenScope = "token:email_change"
	TokenScopePasswordReset tokenScope = "token:password_reset"

	ActivationTokenTime    time.Duration = 3 * 24 * time.Hour
	AccessTokenTime        time.Duration = 7 * 24 * time.Hour
	RefreshTokenTime       time.Duration = 30 * 24 * time.Hour
	EmailChangeTokenTime   time.Duration = 24 * time.Hour
	PasswordResetTokenTime time.Duration = time.Hour

	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	AnonymousUser = User{}
)

type UserService struct {
	m  *UserModel
	t  *TokenModel
	mb common.MessageProducer

	// memo holds short-lived access-token lookups so the authenticate
	// middleware does not hit the document store on every request.
	memo *gocache.Cache
}

type UserModel struct {
	users *mongo.Collection
}

type TokenModel struct {
	tokens *mongo.Collection
	users  *mongo.Collection
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  Password           `bson:"password" json:"-"`
	Role      Role               `bson:"role" json:"role"`
	Picture   string             `bson:"picture,omitempty" json:"picture,omitempty"`
	Bio       string             `bson:"bio,omitempty" json:"bio,omitempty"`
	Activated bool               `bson:"activated" json:"activated"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

type Password struct {
	Plain string `bson:"-" json:"-"`
	Hash  []byte `bson:"hash" json:"-"`
}

type Token struct {
	Plain    string             `bson:"-" json:"token"`
	Hash     []byte             `bson:"hash" json:"-"`
	UserID   primitive.ObjectID `bson:"user" json:"-"`
	Expiry   time.Time          `bson:"expiry" json:"expiry"`
	Scope    tokenScope         `bson:"scope" json:"-"`
	NewEmail string             `bson:"new_email,omitempty" json:"-"`
}

// AuthToken is the access/refresh token pair returned on login.
type AuthToken struct {
	AccessTokenPlain   string    `json:"access_token"`
	RefreshTokenPlain  string    `json:"refresh_token"`
	AccessTokenExpiry  time.Time `json:"access_token_expiry"`
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry"`
	UserID             string    `json:"user_id"`
}

// UpdateProfileRequest carries the optional profile fields. Nil means keep
// the stored value.
type UpdateProfileRequest struct {
	Name    *string
	Bio     *string
	Picture *string
}
