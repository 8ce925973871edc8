package recipients

import "github.com/ignite/warmlane/internal/domain"

// PrefixKeyResolver resolves ObjectStore keys from fixed global-list keys
// plus a per-campaign custom-list prefix (§4.2 step 1, §6 configuration
// knobs: "object-storage bucket + list keys").
type PrefixKeyResolver struct {
	GlobalRecipientsKey  string
	GlobalUnsubscribeKey string
	CustomListPrefix     string
}

// Resolve implements KeyResolver.
func (r PrefixKeyResolver) Resolve(cfg domain.Configuration) Keys {
	if cfg.EmailListSource == domain.ListSourceCustom && cfg.CustomEmailListID != "" {
		return Keys{
			Recipients:  r.CustomListPrefix + cfg.CustomEmailListID + "/recipients.csv",
			Unsubscribe: r.GlobalUnsubscribeKey,
		}
	}
	return Keys{
		Recipients:  r.GlobalRecipientsKey,
		Unsubscribe: r.GlobalUnsubscribeKey,
	}
}
