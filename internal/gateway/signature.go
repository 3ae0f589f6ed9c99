package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature 校验网关回调签名。
// 必须对「原始请求字节」计算 HMAC-SHA256：解析再重编码可能改变字节布局，
// 签名会对不上。比较走 hmac.Equal（常数时间），避免时序侧信道。
// 签名不匹配是正常结果（攻击或配置错误场景下很常见），不是异常，
// 所以任何形态的输入都只返回 false，不报错。
func VerifySignature(rawBody []byte, provided string, secret []byte) bool {
	if provided == "" || len(secret) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}

// Sign 用共享密钥对 body 签名，产出十六进制摘要。
// 服务端校验只用 VerifySignature；Sign 供测试与回放工具构造合法请求。
func Sign(rawBody []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
