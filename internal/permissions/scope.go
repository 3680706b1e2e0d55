package permissions

import (
	"strings"
)

// Strategy resolves the permission tokens to test for a tenant scope.
type Strategy interface {
	Resolve(permission, tenantKey string) []string
}

// StrategyFunc adapts a function into a Strategy.
type StrategyFunc func(permission, tenantKey string) []string

func (fn StrategyFunc) Resolve(permission, tenantKey string) []string {
	if fn == nil {
		return nil
	}
	return fn(permission, tenantKey)
}

const (
	StrategyTenantFirst = "tenant_first"
	StrategyTenantOnly  = "tenant_only"
)

var (
	// TenantFirstStrategy checks the tenant grant before falling back to a global grant.
	TenantFirstStrategy Strategy = StrategyFunc(func(permission, tenantKey string) []string {
		if permission == "" {
			return nil
		}
		if tenantKey == "" {
			return []string{permission}
		}
		scoped := scopePermission(permission, tenantKey)
		if scoped == permission {
			return []string{permission}
		}
		return []string{scoped, permission}
	})
	// TenantOnlyStrategy ignores global grants whenever a tenant is known.
	TenantOnlyStrategy Strategy = StrategyFunc(func(permission, tenantKey string) []string {
		if permission == "" {
			return nil
		}
		return []string{scopePermission(permission, tenantKey)}
	})
)

// StrategyByName maps a configuration value onto a strategy.
func StrategyByName(name string) Strategy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyTenantOnly:
		return TenantOnlyStrategy
	default:
		return TenantFirstStrategy
	}
}

func normalizeTenantKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func splitPermissionScope(permission string) (string, string) {
	if permission == "" {
		return "", ""
	}
	parts := strings.SplitN(permission, "@", 2)
	if len(parts) == 2 {
		tenant := strings.TrimSpace(parts[1])
		if tenant != "" {
			return parts[0], tenant
		}
	}
	return permission, ""
}

func scopePermission(permission, tenantKey string) string {
	if permission == "" || tenantKey == "" {
		return permission
	}
	if strings.Contains(permission, "@") {
		return permission
	}
	return permission + "@" + tenantKey
}

func allowedWithScope(checker Checker, strategy Strategy, permission, tenantKey string) bool {
	if checker == nil {
		return false
	}
	base, scoped := splitPermissionScope(normalizePermission(permission))
	if base == "" {
		return false
	}
	if scoped != "" {
		tenantKey = scoped
	}
	tenantKey = normalizeTenantKey(tenantKey)
	if strategy == nil {
		strategy = TenantFirstStrategy
	}
	for _, candidate := range strategy.Resolve(base, tenantKey) {
		normalized := normalizePermission(candidate)
		if normalized == "" {
			continue
		}
		if checker.Allowed(normalized) {
			return true
		}
	}
	return false
}
