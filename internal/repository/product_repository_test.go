package repository_test

import (
	"sync/atomic"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
	"github.com/nikolayk812/shopcore/internal/repository"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

type productRepositorySuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	repo      port.ProductStore
	container testcontainers.Container
}

// entry point to run the tests in the suite
func TestProductRepositorySuite(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite.Run(t, new(productRepositorySuite))
}

// before all tests in the suite
func (suite *productRepositorySuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.NoError(err)

	suite.NoError(createSchema(ctx, suite.pool))

	suite.repo = repository.NewProduct(suite.pool)
}

// after all tests in the suite
func (suite *productRepositorySuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *productRepositorySuite) TestInsertAndGetProduct() {
	tests := []struct {
		name        string
		productFunc func() domain.Product
	}{
		{
			name:        "product with old price: ok",
			productFunc: randomProduct,
		},
		{
			name: "product without old price: ok",
			productFunc: func() domain.Product {
				p := randomProduct()
				p.OldPrice = nil
				return p
			},
		},
		{
			name: "product with zero stock: ok",
			productFunc: func() domain.Product {
				p := randomProduct()
				p.AvailableQuantity = 0
				return p
			},
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			product := tt.productFunc()

			err := suite.repo.InsertProduct(ctx, product)
			require.NoError(t, err)

			actual, err := suite.repo.GetProduct(ctx, product.ID)
			require.NoError(t, err)

			assertProduct(t, product, actual)
		})
	}
}

func (suite *productRepositorySuite) TestGetProductNotFound() {
	t := suite.T()

	_, err := suite.repo.GetProduct(t.Context(), uuid.New())
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func (suite *productRepositorySuite) TestReserve() {
	unknownID := uuid.New()

	tests := []struct {
		name      string
		stock     int
		quantity  int
		productID *uuid.UUID // overrides the inserted product
		wantError error
		wantLeft  int
	}{
		{name: "reserve within stock: ok", stock: 5, quantity: 3, wantLeft: 2},
		{name: "reserve exactly all: ok", stock: 5, quantity: 5, wantLeft: 0},
		{
			name:     "reserve over stock: insufficient",
			stock:    2,
			quantity: 5,
			wantLeft: 2,
		},
		{
			name:      "reserve unknown product: not found",
			stock:     5,
			quantity:  1,
			productID: &unknownID,
			wantError: domain.ErrProductNotFound,
		},
		{
			name:      "reserve zero quantity: invalid",
			stock:     5,
			quantity:  0,
			wantError: domain.ErrInvalidQuantity,
			wantLeft:  5,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			product := randomProduct()
			product.AvailableQuantity = tt.stock
			require.NoError(t, suite.repo.InsertProduct(ctx, product))

			productID := product.ID
			if tt.productID != nil {
				productID = *tt.productID
			}

			err := suite.repo.Reserve(ctx, productID, tt.quantity)

			switch {
			case tt.wantError != nil:
				require.ErrorIs(t, err, tt.wantError)
				return
			case tt.quantity > tt.stock:
				require.Equal(t, domain.InsufficientStockError{
					ProductID: productID,
					Requested: tt.quantity,
					Available: tt.stock,
				}, err)
			default:
				require.NoError(t, err)
			}

			actual, err := suite.repo.GetProduct(ctx, product.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLeft, actual.AvailableQuantity)
		})
	}
}

func (suite *productRepositorySuite) TestRelease() {
	t := suite.T()
	ctx := t.Context()

	product := randomProduct()
	product.AvailableQuantity = 1
	require.NoError(t, suite.repo.InsertProduct(ctx, product))

	require.NoError(t, suite.repo.Release(ctx, product.ID, 4))

	actual, err := suite.repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, actual.AvailableQuantity)

	require.ErrorIs(t, suite.repo.Release(ctx, uuid.New(), 1), domain.ErrProductNotFound)
	require.ErrorIs(t, suite.repo.Release(ctx, product.ID, 0), domain.ErrInvalidQuantity)
}

// The conditional UPDATE must not oversell under concurrency: with stock 10
// and 50 attempts of 1, exactly 10 succeed.
func (suite *productRepositorySuite) TestConcurrentReserve() {
	t := suite.T()
	ctx := t.Context()

	product := randomProduct()
	product.AvailableQuantity = 10
	require.NoError(t, suite.repo.InsertProduct(ctx, product))

	var succeeded atomic.Int32

	var g errgroup.Group
	for range 50 {
		g.Go(func() error {
			if err := suite.repo.Reserve(ctx, product.ID, 1); err == nil {
				succeeded.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(10), succeeded.Load())

	actual, err := suite.repo.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, actual.AvailableQuantity)
}

func randomProduct() domain.Product {
	price := domain.Money{
		Amount:   decimal.NewFromFloat(gofakeit.Price(1, 100)),
		Currency: randomCurrency(),
	}

	return domain.Product{
		ID:    uuid.New(),
		Name:  gofakeit.ProductName(),
		SKU:   gofakeit.LetterN(10),
		Price: price,
		OldPrice: lo.ToPtr(domain.Money{
			Amount:   price.Amount.Add(decimal.NewFromInt(10)),
			Currency: price.Currency,
		}),
		AvailableQuantity: gofakeit.Number(1, 50),
		MinThreshold:      5,
	}
}

func assertProduct(t *testing.T, expected, actual domain.Product) {
	t.Helper()

	// created_at and updated_at are set by the database
	opts := cmp.Options{
		moneyComparers(),
		cmpopts.IgnoreFields(domain.Product{}, "CreatedAt", "UpdatedAt"),
		cmpopts.EquateEmpty(),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)

	assert.False(t, actual.CreatedAt.IsZero())
	assert.False(t, actual.UpdatedAt.IsZero())
}
