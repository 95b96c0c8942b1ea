package platform

import (
	"context"

	"github.com/hitoshi/profileman/internal/mapper"
	"github.com/hitoshi/profileman/internal/model"
)

// FirmyAdapter はFirmy.czリスティングのアダプター。
// Firmy.czには公開の書き込みAPIがまだ存在しないため、意図的なスタブとして
// 実装されている。ネットワーク呼び出しを一切行わず、常に失敗を返す。
// TODO: Firmy.czのパートナーAPIが公開されたら実装する。
type FirmyAdapter struct{}

// NewFirmyAdapter はFirmyAdapterを生成する。
func NewFirmyAdapter() *FirmyAdapter {
	return &FirmyAdapter{}
}

// Platform はPlatformFirmyを返す。
func (a *FirmyAdapter) Platform() model.Platform {
	return model.PlatformFirmy
}

// Push は常に未実装の失敗結果を返す。ネットワーク呼び出しは行わない。
func (a *FirmyAdapter) Push(ctx context.Context, conn *model.PlatformConnection, payload *mapper.Payload) model.SyncResult {
	return model.SyncResult{
		Platform: model.PlatformFirmy,
		Success:  false,
		Message:  "Firmy.cz連携は未実装です。",
	}
}

// compile-time interface check
var _ Adapter = (*FirmyAdapter)(nil)
