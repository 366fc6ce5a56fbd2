package provider

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// customerPageSize is the fixed page size of the poll-relink loop. Pages are
// fetched one at a time to respect gateway rate limits.
const customerPageSize = 10

// resolveCustomer reconciles the local customer with a remote gateway
// customer record. Each stage is independently fault-tolerant: a failed
// remote call is logged and control falls through to the next stage.
//
//  1. Edit existing: a candidate linkage id is fetched and the remote record
//     updated with changed contact fields.
//  2. Create: a new remote customer from local contact details.
//  3. Poll-relink: when creation fails (typically a duplicate contact on the
//     gateway side), page through the remote list matching phone then email.
//
// The discovered id is written back at most once, into the order notes under
// the flat linkage key and onto the customer reference.
func (p *RazorpayProvider) resolveCustomer(ctx context.Context, sc *SessionContext, params *OrderParams) (*GatewayCustomer, error) {
	if candidate := p.candidateLinkageID(sc, params); candidate != "" {
		p.logger.Info("updating existing customer on the gateway", zap.String("gateway_customer_id", candidate))
		if rc := p.editExistingCustomer(ctx, sc, candidate); rc != nil {
			return rc, nil
		}
	}

	rc, err := p.createCustomer(ctx, sc, params)
	if err == nil {
		return rc, nil
	}
	if pe, ok := IsProviderError(err); ok && pe.Code == CodeValidationError {
		return nil, err
	}
	p.logger.Error("unable to create customer on the gateway, relinking by polling", zap.Error(err))

	return p.pollAndRelinkCustomer(ctx, sc, params)
}

// candidateLinkageID returns the linkage id to try first: an id already noted
// on the intent wins over the customer's stored reference.
func (p *RazorpayProvider) candidateLinkageID(sc *SessionContext, params *OrderParams) string {
	if id := params.Notes[linkageKey]; id != "" {
		return id
	}
	if sc.Customer != nil {
		return sc.Customer.GatewayCustomerID
	}
	return ""
}

// editExistingCustomer fetches the remote customer and pushes changed contact
// fields, keeping remote values where the local ones are absent. Any failure
// returns nil so resolution falls through to the next stage.
func (p *RazorpayProvider) editExistingCustomer(ctx context.Context, sc *SessionContext, customerID string) *GatewayCustomer {
	rc, err := p.client.FetchCustomer(ctx, customerID)
	if err != nil {
		p.logger.Warn("unable to fetch customer from the gateway", zap.String("gateway_customer_id", customerID), zap.Error(err))
		return nil
	}

	email := sc.Email
	if email == "" {
		email = rc.Email
	}
	contact := rc.Contact
	if sc.BillingAddress != nil && sc.BillingAddress.Phone != "" {
		contact = sc.BillingAddress.Phone
	} else if sc.Customer != nil && sc.Customer.Phone != "" {
		contact = sc.Customer.Phone
	}
	name := rc.Name
	if sc.Customer != nil && sc.Customer.FullName() != "" {
		name = sc.Customer.FullName()
	}

	if email == rc.Email && contact == rc.Contact && name == rc.Name {
		// Nothing changed; the fetched record is already current.
		return rc
	}

	updated, err := p.client.EditCustomer(ctx, rc.ID, &CustomerParams{
		Email:   email,
		Contact: contact,
		Name:    name,
	})
	if err != nil {
		p.logger.Warn("unable to edit customer on the gateway", zap.String("gateway_customer_id", rc.ID), zap.Error(err))
		return rc
	}
	return updated
}

// createCustomer creates a remote customer from local contact details. Phone
// and email are required; success persists the new linkage id.
func (p *RazorpayProvider) createCustomer(ctx context.Context, sc *SessionContext, params *OrderParams) (*GatewayCustomer, error) {
	var phone, name, gstin string
	if sc.BillingAddress != nil {
		phone = sc.BillingAddress.Phone
		gstin = sc.BillingAddress.TaxID
	}
	if sc.Customer != nil {
		if phone == "" {
			phone = sc.Customer.Phone
		}
		if gstin == "" {
			gstin = sc.Customer.TaxID
		}
		name = sc.Customer.FullName()
	}

	if phone == "" {
		return nil, NewProviderError(CodeValidationError, "a phone number is required to create a gateway customer")
	}
	if sc.Email == "" {
		return nil, NewProviderError(CodeValidationError, "an email is required to create a gateway customer")
	}

	rc, err := p.client.CreateCustomer(ctx, &CustomerParams{
		Name:         name,
		Email:        sc.Email,
		Contact:      phone,
		GSTIN:        gstin,
		FailExisting: false,
		Notes: map[string]string{
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, err
	}

	p.persistLinkage(sc, params, rc.ID)
	return rc, nil
}

// pollAndRelinkCustomer pages through the remote customer list sequentially,
// matching first by phone and then by email. The first match is persisted.
// An empty page or an exhausted list fails with NotFound.
func (p *RazorpayProvider) pollAndRelinkCustomer(ctx context.Context, sc *SessionContext, params *OrderParams) (*GatewayCustomer, error) {
	var phone, email string
	if sc.Customer != nil {
		phone = sc.Customer.Phone
		email = sc.Customer.Email
	}
	if phone == "" && sc.BillingAddress != nil {
		phone = sc.BillingAddress.Phone
	}
	if email == "" {
		email = sc.Email
	}

	for skip := 0; ; skip += customerPageSize {
		page, err := p.client.ListCustomers(ctx, customerPageSize, skip)
		if err != nil {
			p.logger.Error("unable to poll customers from the gateway", zap.Int("skip", skip), zap.Error(err))
			break
		}
		if len(page) == 0 {
			break
		}

		if rc := matchCustomer(page, phone, email); rc != nil {
			p.persistLinkage(sc, params, rc.ID)
			return rc, nil
		}

		if len(page) < customerPageSize {
			break
		}
	}

	return nil, NewProviderError(CodeNotFound, "no matching customer exists on the gateway and none could be created")
}

// matchCustomer scans a page for a phone match first, then an email match.
func matchCustomer(page []*GatewayCustomer, phone, email string) *GatewayCustomer {
	if phone != "" {
		for _, rc := range page {
			if rc.Contact == phone {
				return rc
			}
		}
	}
	if email != "" {
		for _, rc := range page {
			if rc.Email == email {
				return rc
			}
		}
	}
	return nil
}

// persistLinkage records the discovered gateway customer id, once, under the
// flat key. A customer that already carries a linkage is not mutated.
func (p *RazorpayProvider) persistLinkage(sc *SessionContext, params *OrderParams, gatewayCustomerID string) {
	if params.Notes == nil {
		params.Notes = make(map[string]string, 1)
	}
	if params.Notes[linkageKey] == "" {
		params.Notes[linkageKey] = gatewayCustomerID
	}
	if sc.Customer != nil && sc.Customer.GatewayCustomerID == "" {
		sc.Customer.GatewayCustomerID = gatewayCustomerID
	}
}
