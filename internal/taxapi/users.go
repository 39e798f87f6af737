package taxapi

import (
	"context"
	"net/http"
)

const (
	pathMe          = "/users/me"
	pathMeBusiness  = "/users/me/business"
	pathMeDashboard = "/users/me/dashboard"
	pathMeUsage     = "/users/me/usage"
)

// UserService manages the signed-in account.
type UserService struct {
	caller *caller
}

// Me returns the profile with its subscription.
func (service *UserService) Me(ctx context.Context) (UserWithSubscription, error) {
	var user UserWithSubscription
	_, err := service.caller.call(ctx, http.MethodGet, pathMe, nil, nil, &user, false)
	return user, err
}

// UpdateProfile changes name, profile image or marketing consent.
func (service *UserService) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, error) {
	var user User
	_, err := service.caller.call(ctx, http.MethodPut, pathMe, nil, update, &user, false)
	return user, err
}

// UpdateBusiness changes business registration details.
func (service *UserService) UpdateBusiness(ctx context.Context, update BusinessUpdate) (User, error) {
	if update.TaxType != nil && *update.TaxType != "general" && *update.TaxType != "simplified" {
		return User{}, invalidArgument("tax type must be general or simplified")
	}
	var user User
	_, err := service.caller.call(ctx, http.MethodPut, pathMeBusiness, nil, update, &user, false)
	return user, err
}

// Dashboard returns profile, plan and usage together.
func (service *UserService) Dashboard(ctx context.Context) (UserDashboard, error) {
	var dashboard UserDashboard
	_, err := service.caller.call(ctx, http.MethodGet, pathMeDashboard, nil, nil, &dashboard, false)
	return dashboard, err
}

// Usage returns this month's metered usage.
func (service *UserService) Usage(ctx context.Context) (UsageInfo, error) {
	var usage UsageInfo
	_, err := service.caller.call(ctx, http.MethodGet, pathMeUsage, nil, nil, &usage, false)
	return usage, err
}
