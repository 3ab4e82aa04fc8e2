package notify

import (
	"fmt"
	"time"

	"github.com/Linhcute123/biendongsodu/internal/utils"
)

// DepositMessage renders the notification for a balance increase
func DepositMessage(siteName string, delta, balance float64, ts time.Time) string {
	return fmt.Sprintf(
		"💰 *NHẬN TIỀN TẠI %s*\n\n"+
			"📥 Nội dung: Nạp tiền vào tài khoản\n"+
			"➕ Biến động: *+%s*\n"+
			"💰 Số dư cuối: *%s*\n"+
			"🕒 %s",
		siteName,
		utils.FormatMoney(delta),
		utils.FormatMoney(balance),
		utils.FormatTimestamp(ts),
	)
}

// PaymentMessage renders the notification for a balance decrease. The
// magnitude is shown with an explicit minus sign.
func PaymentMessage(siteName string, magnitude, balance float64, ts time.Time) string {
	return fmt.Sprintf(
		"🔻 *THANH TOÁN TẠI %s*\n\n"+
			"💳 Nội dung: Thanh toán / trừ số dư\n"+
			"➖ Biến động: *-%s*\n"+
			"💰 Số dư cuối: *%s*\n"+
			"🕒 %s",
		siteName,
		utils.FormatMoney(magnitude),
		utils.FormatMoney(balance),
		utils.FormatTimestamp(ts),
	)
}

// ThresholdMessage renders the low-balance alert fired when the balance
// crosses below the configured threshold
func ThresholdMessage(siteName string, balance, threshold float64, ts time.Time) string {
	return fmt.Sprintf(
		"⚠️ *CẢNH BÁO SỐ DƯ THẤP - %s*\n\n"+
			"🔥 Số dư hiện tại: *%s*\n"+
			"❗ Ngưỡng cảnh báo chung: *%s*\n"+
			"👉 Vui lòng nạp thêm để tránh gián đoạn dịch vụ.\n"+
			"🕒 %s",
		siteName,
		utils.FormatMoney(balance),
		utils.FormatMoney(threshold),
		utils.FormatTimestamp(ts),
	)
}
