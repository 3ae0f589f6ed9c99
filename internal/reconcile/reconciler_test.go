package reconcile_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockDispatcher 记录每次确认通知调用，可注入失败。
type mockDispatcher struct {
	mu       sync.Mutex
	calls    []notify.ConfirmationMessage
	failWith error
}

func (m *mockDispatcher) DispatchOrderConfirmation(_ context.Context, msg notify.ConfirmationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msg)
	return m.failWith
}

func (m *mockDispatcher) Calls() []notify.ConfirmationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.ConfirmationMessage(nil), m.calls...)
}

type fixture struct {
	db         *gorm.DB
	rec        *reconcile.Reconciler
	dispatcher *mockDispatcher

	productA uint
	productB uint
	variantX uint
}

func setupReconcileTest(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: 下每个连接都是独立数据库，必须收敛到单连接。
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Product{}, &model.ProductVariant{},
		&model.Order{}, &model.OrderItem{}, &model.Coupon{},
	))

	// 具体场景：productA 库存 5，productB 规格 variantX 库存 4，券 SAVE10 未使用。
	pa := &model.Product{Name: "product-a", Price: 1000, Quantity: 5}
	require.NoError(t, db.Create(pa).Error)
	pb := &model.Product{Name: "product-b", Price: 2000, Quantity: 10}
	require.NoError(t, db.Create(pb).Error)
	vx := &model.ProductVariant{ProductID: pb.ID, Name: "product-b / X", Price: 2000, Quantity: 4}
	require.NoError(t, db.Create(vx).Error)
	require.NoError(t, db.Create(&model.Coupon{Code: "SAVE10"}).Error)

	dispatcher := &mockDispatcher{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := reconcile.New(db, nil, dispatcher, log, time.Hour)

	return &fixture{
		db: db, rec: rec, dispatcher: dispatcher,
		productA: pa.ID, productB: pb.ID, variantX: vx.ID,
	}
}

// createOrder 建一张 PENDING/PENDING 订单：productA x2 + productB(variantX) x3，券 SAVE10。
func (f *fixture) createOrder(t *testing.T, ref, coupon string) *model.Order {
	t.Helper()
	order := &model.Order{
		PaymentRef:    ref,
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		CouponCode:    coupon,
		Total:         8000,
		Items: []model.OrderItem{
			{ProductID: f.productA, Quantity: 2, UnitPrice: 1000},
			{ProductID: f.productB, VariantID: &f.variantX, Quantity: 3, UnitPrice: 2000},
		},
	}
	require.NoError(t, f.db.Create(order).Error)
	return order
}

func paidEvent(orderRef, paymentID string) gateway.Event {
	return gateway.Event{
		Kind:             gateway.KindOrderPaid,
		GatewayOrderID:   orderRef,
		GatewayPaymentID: paymentID,
		RawEvent:         "order.paid",
	}
}

func (f *fixture) productQty(t *testing.T, id uint) int64 {
	t.Helper()
	var p model.Product
	require.NoError(t, f.db.First(&p, id).Error)
	return p.Quantity
}

func (f *fixture) variantQty(t *testing.T, id uint) int64 {
	t.Helper()
	var v model.ProductVariant
	require.NoError(t, f.db.First(&v, id).Error)
	return v.Quantity
}

func (f *fixture) couponUsage(t *testing.T, code string) int64 {
	t.Helper()
	var c model.Coupon
	require.NoError(t, f.db.Where("code = ?", code).First(&c).Error)
	return c.UsageCount
}

func TestReconcile_ConcreteScenario(t *testing.T) {
	f := setupReconcileTest(t)
	f.createOrder(t, "order_gw_1", "SAVE10")
	before := time.Now()

	outcome, err := f.rec.Reconcile(context.Background(), paidEvent("order_gw_1", "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomePaid, outcome)

	var order model.Order
	require.NoError(t, f.db.Where("payment_ref = ?", "order_gw_1").First(&order).Error)
	assert.Equal(t, model.OrderProcessing, order.Status)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "pay_1", order.PaymentID)
	require.NotNil(t, order.PaidAt)
	assert.False(t, order.PaidAt.Before(before.Add(-time.Second)))

	assert.Equal(t, int64(3), f.productQty(t, f.productA), "productA 5-2")
	assert.Equal(t, int64(1), f.variantQty(t, f.variantX), "variantX 4-3")
	assert.Equal(t, int64(10), f.productQty(t, f.productB), "productB 本体库存不动")
	assert.Equal(t, int64(1), f.couponUsage(t, "SAVE10"))

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "order_gw_1", calls[0].PaymentRef)
	assert.Equal(t, "pay_1", calls[0].GatewayPaymentID)
	assert.Equal(t, int64(8000), calls[0].Total)
}

func TestReconcile_IdempotentAcrossRedeliveries(t *testing.T) {
	f := setupReconcileTest(t)
	f.createOrder(t, "order_gw_1", "SAVE10")
	evt := paidEvent("order_gw_1", "pay_1")

	outcomes := make([]reconcile.Outcome, 0, 3)
	for i := 0; i < 3; i++ {
		outcome, err := f.rec.Reconcile(context.Background(), evt)
		require.NoError(t, err)
		outcomes = append(outcomes, outcome)
	}

	assert.Equal(t, []reconcile.Outcome{
		reconcile.OutcomePaid,
		reconcile.OutcomeAlreadyPaid,
		reconcile.OutcomeAlreadyPaid,
	}, outcomes)

	// N 次投递，副作用恰好一份。
	assert.Equal(t, int64(3), f.productQty(t, f.productA))
	assert.Equal(t, int64(1), f.variantQty(t, f.variantX))
	assert.Equal(t, int64(1), f.couponUsage(t, "SAVE10"))
	assert.Len(t, f.dispatcher.Calls(), 1)
}

func TestReconcile_ConcurrentDuplicateDeliveries(t *testing.T) {
	f := setupReconcileTest(t)
	f.createOrder(t, "order_gw_1", "SAVE10")
	evt := paidEvent("order_gw_1", "pay_1")

	const n = 8
	outcomes := make([]reconcile.Outcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			outcomes[idx], errs[idx] = f.rec.Reconcile(context.Background(), evt)
		}(i)
	}
	wg.Wait()

	paid := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		switch outcomes[i] {
		case reconcile.OutcomePaid:
			paid++
		case reconcile.OutcomeAlreadyPaid:
		default:
			t.Fatalf("unexpected outcome %q", outcomes[i])
		}
	}
	assert.Equal(t, 1, paid, "恰好一次投递完成状态迁移")

	// 终态与单次投递完全一致。
	assert.Equal(t, int64(3), f.productQty(t, f.productA))
	assert.Equal(t, int64(1), f.variantQty(t, f.variantX))
	assert.Equal(t, int64(1), f.couponUsage(t, "SAVE10"))
	assert.Len(t, f.dispatcher.Calls(), 1)
}

func TestReconcile_AtomicOnInsufficientStock(t *testing.T) {
	f := setupReconcileTest(t)
	// 把第二行（variantX）的库存压到不够扣。
	require.NoError(t, f.db.Model(&model.ProductVariant{}).
		Where("id = ?", f.variantX).Update("quantity", 2).Error)
	f.createOrder(t, "order_gw_1", "SAVE10")

	outcome, err := f.rec.Reconcile(context.Background(), paidEvent("order_gw_1", "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeInsufficientStock, outcome)

	// 全部回滚：订单仍 PENDING/PENDING，第一行的扣减也没发生。
	var order model.Order
	require.NoError(t, f.db.Where("payment_ref = ?", "order_gw_1").First(&order).Error)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, model.PaymentPending, order.PaymentStatus)
	assert.Nil(t, order.PaidAt)

	assert.Equal(t, int64(5), f.productQty(t, f.productA))
	assert.Equal(t, int64(2), f.variantQty(t, f.variantX))
	assert.Equal(t, int64(0), f.couponUsage(t, "SAVE10"))
	assert.Empty(t, f.dispatcher.Calls())
}

func TestReconcile_UnhandledEvent(t *testing.T) {
	f := setupReconcileTest(t)
	f.createOrder(t, "order_gw_1", "SAVE10")

	outcome, err := f.rec.Reconcile(context.Background(), gateway.Event{
		Kind:     gateway.KindUnhandled,
		RawEvent: "refund.created",
	})
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeUnhandled, outcome)

	assert.Equal(t, int64(5), f.productQty(t, f.productA))
	assert.Equal(t, int64(0), f.couponUsage(t, "SAVE10"))
	assert.Empty(t, f.dispatcher.Calls())
}

func TestReconcile_OrderMissing(t *testing.T) {
	f := setupReconcileTest(t)

	outcome, err := f.rec.Reconcile(context.Background(), paidEvent("order_gw_nope", "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomeOrderMissing, outcome)
	assert.Empty(t, f.dispatcher.Calls())
}

func TestReconcile_NoCoupon(t *testing.T) {
	f := setupReconcileTest(t)
	f.createOrder(t, "order_gw_1", "")

	outcome, err := f.rec.Reconcile(context.Background(), paidEvent("order_gw_1", "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomePaid, outcome)

	assert.Equal(t, int64(3), f.productQty(t, f.productA))
	assert.Equal(t, int64(0), f.couponUsage(t, "SAVE10"))
}

func TestReconcile_DispatcherFailureDoesNotRollBack(t *testing.T) {
	f := setupReconcileTest(t)
	f.dispatcher.failWith = assert.AnError
	f.createOrder(t, "order_gw_1", "SAVE10")

	outcome, err := f.rec.Reconcile(context.Background(), paidEvent("order_gw_1", "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.OutcomePaid, outcome)

	// 通知失败只记日志，已提交的状态不受影响。
	var order model.Order
	require.NoError(t, f.db.Where("payment_ref = ?", "order_gw_1").First(&order).Error)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, int64(3), f.productQty(t, f.productA))
}
