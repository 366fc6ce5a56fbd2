package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCustomer_EditStage(t *testing.T) {
	t.Run("Unchanged linked customer costs exactly one remote call", func(t *testing.T) {
		client := &fakeGatewayClient{
			fetchCustomerFn: func(id string) (*GatewayCustomer, error) {
				return linkedCustomerRecord(), nil
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		rc, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.NoError(t, err)

		assert.Equal(t, "cust_1", rc.ID)
		assert.Equal(t, []string{"FetchCustomer"}, client.calls)
	})

	t.Run("Changed contact details push an edit", func(t *testing.T) {
		var edited *CustomerParams
		client := &fakeGatewayClient{
			fetchCustomerFn: func(id string) (*GatewayCustomer, error) {
				return &GatewayCustomer{ID: "cust_1", Name: "Ada Lovelace", Email: "old@example.com", Contact: "+911111111111"}, nil
			},
			editCustomerFn: func(id string, params *CustomerParams) (*GatewayCustomer, error) {
				edited = params
				return &GatewayCustomer{ID: id, Name: params.Name, Email: params.Email, Contact: params.Contact}, nil
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		rc, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.NoError(t, err)

		require.NotNil(t, edited)
		assert.Equal(t, "ada@example.com", edited.Email)
		assert.Equal(t, "+919876543210", edited.Contact)
		assert.Equal(t, "ada@example.com", rc.Email)
	})

	t.Run("Edit keeps remote values where local ones are absent", func(t *testing.T) {
		var edited *CustomerParams
		client := &fakeGatewayClient{
			fetchCustomerFn: func(id string) (*GatewayCustomer, error) {
				return &GatewayCustomer{ID: "cust_1", Name: "Ada Lovelace", Email: "remote@example.com", Contact: "+911111111111"}, nil
			},
			editCustomerFn: func(id string, params *CustomerParams) (*GatewayCustomer, error) {
				edited = params
				return &GatewayCustomer{ID: id}, nil
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		sc.Email = ""

		_, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.NoError(t, err)

		require.NotNil(t, edited)
		assert.Equal(t, "remote@example.com", edited.Email, "absent local email keeps the remote one")
	})

	t.Run("Edit failure still resolves to the fetched record", func(t *testing.T) {
		client := &fakeGatewayClient{
			fetchCustomerFn: func(id string) (*GatewayCustomer, error) {
				return &GatewayCustomer{ID: "cust_1", Email: "old@example.com"}, nil
			},
			editCustomerFn: func(id string, params *CustomerParams) (*GatewayCustomer, error) {
				return nil, &GatewayError{Description: "edit rejected"}
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		rc, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.NoError(t, err)
		assert.Equal(t, "cust_1", rc.ID)
	})

	t.Run("Fetch failure falls through to creation", func(t *testing.T) {
		client := &fakeGatewayClient{
			fetchCustomerFn: func(id string) (*GatewayCustomer, error) {
				return nil, &GatewayError{Description: "no such customer"}
			},
			createCustomerFn: func(params *CustomerParams) (*GatewayCustomer, error) {
				return &GatewayCustomer{ID: "cust_new"}, nil
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		rc, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.NoError(t, err)

		assert.Equal(t, "cust_new", rc.ID)
		assert.Equal(t, 1, client.callCount("CreateCustomer"))
	})
}

func TestResolveCustomer_CreateStage(t *testing.T) {
	t.Run("Missing phone fails validation without polling", func(t *testing.T) {
		client := &fakeGatewayClient{}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		sc.Customer.GatewayCustomerID = ""
		sc.Customer.Phone = ""
		sc.BillingAddress.Phone = ""

		_, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.Error(t, err)

		pe, ok := IsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, CodeValidationError, pe.Code)
		assert.Zero(t, client.callCount("ListCustomers"), "validation failures must not trigger the relink poll")
	})

	t.Run("Missing email fails validation", func(t *testing.T) {
		p := newTestProvider(&fakeGatewayClient{}, nil)

		sc := linkedSessionContext()
		sc.Customer.GatewayCustomerID = ""
		sc.Email = ""

		_, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.Error(t, err)

		pe, ok := IsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, CodeValidationError, pe.Code)
	})

	t.Run("Successful creation persists the linkage once", func(t *testing.T) {
		client := &fakeGatewayClient{
			createCustomerFn: func(params *CustomerParams) (*GatewayCustomer, error) {
				return &GatewayCustomer{ID: "cust_new", Email: params.Email, Contact: params.Contact}, nil
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		sc.Customer.GatewayCustomerID = ""
		params := p.buildOrderParams(sc)

		rc, err := p.resolveCustomer(context.Background(), sc, params)
		require.NoError(t, err)

		assert.Equal(t, "cust_new", rc.ID)
		assert.Equal(t, "cust_new", params.Notes[linkageKey])
		assert.Equal(t, "cust_new", sc.Customer.GatewayCustomerID)
	})
}

func TestResolveCustomer_PollRelink(t *testing.T) {
	pageOf := func(n int, prefix string) []*GatewayCustomer {
		page := make([]*GatewayCustomer, n)
		for i := range page {
			page[i] = &GatewayCustomer{ID: prefix, Contact: "+910000000000", Email: "other@example.com"}
		}
		return page
	}

	t.Run("Matches by phone across pages", func(t *testing.T) {
		client := &fakeGatewayClient{
			createCustomerFn: func(params *CustomerParams) (*GatewayCustomer, error) {
				return nil, &GatewayError{Description: "customer already exists"}
			},
			listCustomersFn: func(count, skip int) ([]*GatewayCustomer, error) {
				if skip == 0 {
					return pageOf(customerPageSize, "cust_other"), nil
				}
				return []*GatewayCustomer{
					{ID: "cust_match", Contact: "+919876543210", Email: "someone@example.com"},
				}, nil
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		sc.Customer.GatewayCustomerID = ""
		params := p.buildOrderParams(sc)

		rc, err := p.resolveCustomer(context.Background(), sc, params)
		require.NoError(t, err)

		assert.Equal(t, "cust_match", rc.ID)
		assert.Equal(t, "cust_match", params.Notes[linkageKey])
		assert.Equal(t, 2, client.callCount("ListCustomers"))
	})

	t.Run("Phone match wins over email match", func(t *testing.T) {
		page := []*GatewayCustomer{
			{ID: "cust_email", Contact: "+910000000000", Email: "ada@example.com"},
			{ID: "cust_phone", Contact: "+919876543210", Email: "other@example.com"},
		}
		got := matchCustomer(page, "+919876543210", "ada@example.com")
		require.NotNil(t, got)
		assert.Equal(t, "cust_phone", got.ID)
	})

	t.Run("Falls back to email when no phone matches", func(t *testing.T) {
		page := []*GatewayCustomer{
			{ID: "cust_email", Contact: "+910000000000", Email: "ada@example.com"},
		}
		got := matchCustomer(page, "+919876543210", "ada@example.com")
		require.NotNil(t, got)
		assert.Equal(t, "cust_email", got.ID)
	})

	t.Run("Exhausted list fails with not found", func(t *testing.T) {
		client := &fakeGatewayClient{
			createCustomerFn: func(params *CustomerParams) (*GatewayCustomer, error) {
				return nil, &GatewayError{Description: "customer already exists"}
			},
			listCustomersFn: func(count, skip int) ([]*GatewayCustomer, error) {
				if skip == 0 {
					return pageOf(3, "cust_other"), nil
				}
				return nil, nil
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		sc.Customer.GatewayCustomerID = ""

		_, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.Error(t, err)

		pe, ok := IsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, CodeNotFound, pe.Code)
		assert.Equal(t, 1, client.callCount("ListCustomers"), "a short page ends the poll")
	})

	t.Run("Listing failure fails with not found", func(t *testing.T) {
		client := &fakeGatewayClient{
			createCustomerFn: func(params *CustomerParams) (*GatewayCustomer, error) {
				return nil, &GatewayError{Description: "customer already exists"}
			},
			listCustomersFn: func(count, skip int) ([]*GatewayCustomer, error) {
				return nil, &GatewayError{Description: "rate limited"}
			},
		}
		p := newTestProvider(client, nil)

		sc := linkedSessionContext()
		sc.Customer.GatewayCustomerID = ""

		_, err := p.resolveCustomer(context.Background(), sc, p.buildOrderParams(sc))
		require.Error(t, err)

		pe, ok := IsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, CodeNotFound, pe.Code)
	})
}

func TestPersistLinkage(t *testing.T) {
	t.Run("Does not overwrite an existing linkage", func(t *testing.T) {
		p := newTestProvider(&fakeGatewayClient{}, nil)

		sc := linkedSessionContext()
		params := &OrderParams{Notes: map[string]string{linkageKey: "cust_noted"}}

		p.persistLinkage(sc, params, "cust_new")

		assert.Equal(t, "cust_noted", params.Notes[linkageKey])
		assert.Equal(t, "cust_1", sc.Customer.GatewayCustomerID)
	})

	t.Run("Initializes nil notes", func(t *testing.T) {
		p := newTestProvider(&fakeGatewayClient{}, nil)

		sc := &SessionContext{Customer: &Customer{}}
		params := &OrderParams{}

		p.persistLinkage(sc, params, "cust_new")

		assert.Equal(t, "cust_new", params.Notes[linkageKey])
		assert.Equal(t, "cust_new", sc.Customer.GatewayCustomerID)
	})
}
