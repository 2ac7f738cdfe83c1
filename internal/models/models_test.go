package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserValidate(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	valid := User{Email: "a@x.com", Password: "hash", Role: RoleTeacher, OTP: "123456", ExpiryTime: &exp}
	assert.NoError(t, valid.Validate())

	verified := User{Email: "a@x.com", Password: "hash", Role: RoleStudent, IsVerified: true}
	assert.NoError(t, verified.Validate())

	bad := User{Email: "nope", Role: "admin"}
	err := bad.Validate()
	assert.ErrorContains(t, err, "email is invalid")
	assert.ErrorContains(t, err, "password hash is empty")
	assert.ErrorContains(t, err, "role is invalid")
	assert.ErrorContains(t, err, "no one-time code")
}

func TestLectureValidate(t *testing.T) {
	l := Lecture{Title: "Week 1", PDFURL: "https://files.example/lecture-notes/raw/upload/v1/a.pdf", CreatedAt: time.Now()}
	assert.NoError(t, l.Validate())

	l.PDFURL = "lecture.pdf"
	assert.ErrorContains(t, l.Validate(), "pdfUrl")

	empty := Lecture{}
	err := empty.Validate()
	assert.ErrorContains(t, err, "title")
	assert.ErrorContains(t, err, "createdAt")
}
