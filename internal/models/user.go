package models

import (
	"errors"
	"net/mail"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can sign up with.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	return r == RoleTeacher || r == RoleStudent
}

// User is an account record. The one-time code lives on the record until the
// account is verified.
type User struct {
	ID         primitive.ObjectID `json:"id"          bson:"_id,omitempty"`
	FirstName  string             `json:"first_name"  bson:"first_name"`
	LastName   string             `json:"last_name"   bson:"last_name"`
	Email      string             `json:"email"       bson:"email"`
	Password   string             `json:"-"           bson:"password"` // bcrypt hash, never serialized
	PhoneNo    string             `json:"phone_no"    bson:"phone_no"`
	Role       string             `json:"role"        bson:"role"`
	IsVerified bool               `json:"is_verified" bson:"is_verified"`
	OTP        string             `json:"-"           bson:"otp,omitempty"`
	ExpiryTime *time.Time         `json:"-"           bson:"expiry_time,omitempty"`
	CreatedAt  time.Time          `json:"created_at"  bson:"created_at"`
}

// Validate checks the invariants a stored user must satisfy.
func (u *User) Validate() error {
	var errs []error
	if _, err := mail.ParseAddress(u.Email); err != nil {
		errs = append(errs, errors.New("email is invalid"))
	}
	if u.Password == "" {
		errs = append(errs, errors.New("password hash is empty"))
	}
	if !ValidRole(u.Role) {
		errs = append(errs, errors.New("role is invalid"))
	}
	if !u.IsVerified && (u.OTP == "" || u.ExpiryTime == nil) {
		errs = append(errs, errors.New("unverified user has no one-time code"))
	}
	return errors.Join(errs...)
}

// SignUpRequest is the JSON body for POST /api/signup.
type SignUpRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	PhoneNo   string `json:"phone_no"`
	Role      string `json:"role"`
}

// SignInRequest is the JSON body for POST /api/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyOTPRequest is the JSON body for POST /api/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ResendOTPRequest is the JSON body for POST /api/resend-otp.
type ResendOTPRequest struct {
	Email string `json:"email"`
}
