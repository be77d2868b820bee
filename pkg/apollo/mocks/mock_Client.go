// Package mocks provides test doubles for the apollo client.
package mocks

import (
	"context"

	apollo "github.com/sells-group/leadgen/pkg/apollo"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// EnrichOrganization provides a mock function with given fields: ctx, domain
func (_m *MockClient) EnrichOrganization(ctx context.Context, domain string) (*apollo.Organization, error) {
	ret := _m.Called(ctx, domain)

	if len(ret) == 0 {
		panic("no return value specified for EnrichOrganization")
	}

	var r0 *apollo.Organization
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*apollo.Organization, error)); ok {
		return rf(ctx, domain)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *apollo.Organization); ok {
		r0 = rf(ctx, domain)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*apollo.Organization)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, domain)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SearchCompanies provides a mock function with given fields: ctx, req
func (_m *MockClient) SearchCompanies(ctx context.Context, req apollo.SearchRequest) (*apollo.SearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for SearchCompanies")
	}

	var r0 *apollo.SearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, apollo.SearchRequest) (*apollo.SearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, apollo.SearchRequest) *apollo.SearchResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*apollo.SearchResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, apollo.SearchRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
