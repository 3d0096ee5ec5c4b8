package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	obslogger "github.com/ecodeli/ecodeli/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the policies stored in casbin_rule and seeds the defaults.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	return newEnforcer(adapter)
}

// NewMemoryEnforcer keeps the default policies in memory only.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	return newEnforcer(nil)
}

func newEnforcer(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(adapter != nil)
	enforcer.EnableAutoBuildRoleLinks(true)
	if adapter != nil {
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	if strings.TrimSpace(actor.ID) == "" || !actor.Role.Valid() {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(actor.Role.Subject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		obslogger.WithContext(ctx, s.log).Info("authorization.denied",
			zap.String("actor_id", actor.ID),
			zap.String("role", string(actor.Role)),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Anyone with an account can preview prices and read their notifications.
		{RoleClient.Subject(), ObjectPricing, ActionPricingQuote},
		{RoleDeliverer.Subject(), ObjectPricing, ActionPricingQuote},
		{RoleMerchant.Subject(), ObjectPricing, ActionPricingQuote},
		{RoleProvider.Subject(), ObjectPricing, ActionPricingQuote},
		{RoleClient.Subject(), ObjectNotification, ActionNotificationView},
		{RoleDeliverer.Subject(), ObjectNotification, ActionNotificationView},
		{RoleMerchant.Subject(), ObjectNotification, ActionNotificationView},
		{RoleProvider.Subject(), ObjectNotification, ActionNotificationView},

		// Client permissions
		{RoleClient.Subject(), ObjectPricing, ActionPricingCheckout},
		{RoleClient.Subject(), ObjectSubscription, ActionSubscriptionView},
		{RoleClient.Subject(), ObjectSubscription, ActionSubscriptionChange},

		// Provider permissions
		{RoleProvider.Subject(), ObjectInvoice, ActionInvoiceView},

		// Admin permissions
		{RoleAdmin.Subject(), ObjectInvoice, ActionInvoiceViewAny},
		{RoleAdmin.Subject(), ObjectInvoice, ActionInvoiceMarkPaid},
		{RoleAdmin.Subject(), ObjectInvoice, ActionInvoiceTransferFailed},
		{RoleAdmin.Subject(), ObjectBilling, ActionBillingRun},
		{RoleAdmin.Subject(), ObjectBilling, ActionBillingStatus},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Admins inherit everything a provider can do.
	if _, err := enforcer.AddGroupingPolicy(RoleAdmin.Subject(), RoleProvider.Subject()); err != nil {
		return err
	}
	return nil
}
