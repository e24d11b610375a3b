// Package main provides localization for the screenstream CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages and summary labels.
	l10n.Register("ja", l10n.LexiconMap{
		// Runtime messages
		"screenstream version %s":        "screenstream バージョン %s",
		"Summary saved to %s":            "サマリーを %s に保存しました",
		"Failed to write summary: %s":    "サマリーの書き込みに失敗しました: %s",
		"Could not verify output %s: %s": "出力 %s を検証できませんでした: %s",
		"Output video track: %s":         "出力映像トラック: %s",

		// Summary content
		"Stream Summary": "配信サマリー",
		"Generated":      "生成日時",
		"Results":        "実行結果",
		"Settings":       "設定",
		"Item":           "項目",
		"Value":          "値",
		"Generated by":   "生成:",

		// Results section
		"Stream ID":      "ストリームID",
		"Destination":    "出力先",
		"Status":         "状態",
		"Completed":      "完了",
		"Terminated":     "強制終了",
		"Failed":         "失敗",
		"exit code":      "終了コード",
		"Elapsed":        "経過時間",
		"Video Duration": "動画再生時間",
		"Video Track":    "映像トラック",
		"Frames Emitted": "出力フレーム数",
		"Data Sent":      "送信データ量",
		"Retries":        "再試行回数",

		// Settings section
		"Frame Rate":    "フレームレート",
		"Screencast":    "スクリーンキャスト",
		"quality":       "品質",
		"Codec":         "コーデック",
		"Bitrate":       "ビットレート",
		"Default":       "デフォルト",
		"Output Size":   "出力サイズ",
		"Follow Popups": "ポップアップ追跡",
		"Max Retries":   "最大再試行回数",
		"Yes":           "はい",
		"No":            "いいえ",
	})
}
