// Package testutil provides test doubles shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// MockPage is a mock implementation of operation.Page
type MockPage struct {
	mock.Mock
}

var _ operation.Page = (*MockPage)(nil)

// NewMockPage creates a mock page that fails the test on unexpected calls
func NewMockPage(t *testing.T) *MockPage {
	t.Helper()
	m := new(MockPage)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// URL mocks the URL method.
func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Snapshot mocks the Snapshot method.
func (m *MockPage) Snapshot(ctx context.Context) (*dom.Node, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dom.Node), args.Error(1)
}

// Navigate mocks the Navigate method.
func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

// Click mocks the Click method.
func (m *MockPage) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

// ClickAt mocks the ClickAt method.
func (m *MockPage) ClickAt(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

// MouseMove mocks the MouseMove method.
func (m *MockPage) MouseMove(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

// Type mocks the Type method.
func (m *MockPage) Type(ctx context.Context, selector, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

// Scroll mocks the Scroll method.
func (m *MockPage) Scroll(ctx context.Context, selector string, dx, dy float64) error {
	return m.Called(ctx, selector, dx, dy).Error(0)
}

// Screenshot mocks the Screenshot method.
func (m *MockPage) Screenshot(ctx context.Context, selector string, opts operation.ScreenshotOptions) ([]byte, error) {
	args := m.Called(ctx, selector, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Evaluate mocks the Evaluate method.
func (m *MockPage) Evaluate(ctx context.Context, script string, args ...any) (any, error) {
	called := m.Called(ctx, script, args)
	return called.Get(0), called.Error(1)
}

// HTML mocks the HTML method.
func (m *MockPage) HTML(ctx context.Context, selector string) (string, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Error(1)
}
