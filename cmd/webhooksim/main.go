package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"storefront/internal/gateway"
)

// Result 记录单次投递的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

// webhooksim 模拟支付网关的 at-least-once 投递：
// 对同一笔支付并发发送 N 份完全相同的已签名回调，
// 验证服务端幂等——最终状态应与单次投递一致。
func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	secret := flag.String("secret", "", "webhook shared secret")
	orderID := flag.String("order", "order_sim_001", "gateway order id")
	paymentID := flag.String("payment", "pay_sim_001", "gateway payment id")
	deliveries := flag.Int("n", 50, "duplicate deliveries")
	concurrency := flag.Int("c", 20, "max concurrency")
	tamper := flag.Bool("tamper", false, "also send one tampered delivery (expect 400)")
	flag.Parse()

	if *secret == "" {
		panic("missing -secret")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	body, err := json.Marshal(map[string]any{
		"event": "order.paid",
		"payload": map[string]any{
			"order":   map[string]any{"entity": map[string]any{"id": *orderID}},
			"payment": map[string]any{"entity": map[string]any{"id": *paymentID, "order_id": *orderID}},
		},
	})
	if err != nil {
		panic(err)
	}
	sig := gateway.Sign(body, []byte(*secret))

	fmt.Printf("start duplicate-delivery test: order=%s payment=%s n=%d c=%d\n",
		*orderID, *paymentID, *deliveries, *concurrency)
	results := runDeliveries(client, *baseURL, body, sig, *deliveries, *concurrency)
	printSummary("duplicate-delivery", results)

	if *tamper {
		// 签名后改一个字节，服务端必须 400 且零状态变更。
		bad := append([]byte(nil), body...)
		bad[len(bad)/2] ^= 0x01
		res := deliver(client, *baseURL, bad, sig)
		fmt.Printf("tampered delivery: status=%d body=%s\n", res.Status, res.Body)
	}

	// 投递完成后查询订单终态。
	resp, err := client.Get(fmt.Sprintf("%s/api/orders/%s", *baseURL, *orderID))
	if err != nil {
		fmt.Printf("order lookup failed: %v\n", err)
		return
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Printf("final order state: %s\n", string(b))
}

func runDeliveries(client *http.Client, baseURL string, body []byte, sig string, n, concurrency int) []Result {
	results := make([]Result, n)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = deliver(client, baseURL, body, sig)
		}(i)
	}
	wg.Wait()
	return results
}

func deliver(client *http.Client, baseURL string, body []byte, sig string) Result {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/payments/webhook", bytes.NewReader(body))
	if err != nil {
		return Result{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Signature", sig)

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(b)}
}

func printSummary(name string, results []Result) {
	byStatus := map[int]int{}
	errs := 0
	for _, r := range results {
		if r.Err != nil {
			errs++
			continue
		}
		byStatus[r.Status]++
	}
	fmt.Printf("[%s] total=%d errors=%d\n", name, len(results), errs)
	for status, count := range byStatus {
		fmt.Printf("  status %d: %d\n", status, count)
	}
}
