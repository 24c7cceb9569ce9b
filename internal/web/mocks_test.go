// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package web_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/firrel/regdemo/internal/auth"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Register(ctx context.Context, name, email, password string) error {
	return m.Called(ctx, name, email, password).Error(0)
}

func (m *mockAuth) VerifyEmail(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuth) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*auth.Session, string, error) {
	args := m.Called(ctx, email, password, userAgent, ipAddress)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.String(1), args.Error(2)
}

func (m *mockAuth) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuth) CheckSession(ctx context.Context, token string) (*auth.Session, error) {
	args := m.Called(ctx, token)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *mockAuth) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuth) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

type mockProfile struct {
	mock.Mock
}

func (m *mockProfile) GetProfile(session *auth.Session) auth.UserSnapshot {
	return m.Called(session).Get(0).(auth.UserSnapshot)
}

func (m *mockProfile) UpdateProfile(ctx context.Context, session *auth.Session, in auth.ProfileUpdate) (*auth.ProfileResult, error) {
	args := m.Called(ctx, session, in)
	result, _ := args.Get(0).(*auth.ProfileResult)
	return result, args.Error(1)
}

type recordedRequest struct {
	method, route string
	status        int
}

type recordedEvent struct {
	event string
	err   error
}

type fakeMetrics struct {
	requests []recordedRequest
	events   []recordedEvent
}

func (f *fakeMetrics) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method: method, route: route, status: status})
}

func (f *fakeMetrics) RecordAuthEvent(event string, err error) {
	f.events = append(f.events, recordedEvent{event: event, err: err})
}
