package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Session lifecycle (info)
		"Capturing %s (stream %s)":         "%s をキャプチャ中 (ストリーム %s)",
		"Navigating to %s":                 "%s へ移動中",
		"Streaming to %s":                  "%s へ配信中",
		"Stream finished: %d frames in %s": "配信終了: %d フレーム (%s)",
		"Output saved to %s":               "出力を %s に保存しました",
		"Captured %d frames":               "%d フレームをキャプチャしました",
		"Health server listening on %s":    "ヘルスサーバーを %s で待ち受け中",
		"Interrupted, stopping stream...":  "中断されました。配信を停止中...",

		// Capture component
		"Starting screencast":              "スクリーンキャストを開始",
		"Following popup %s":               "ポップアップ %s を追跡",
		"Surface %s closed":                "サーフェス %s が閉じられました",
		"Capture session %s ended":         "キャプチャセッション %s が終了しました",
		"Skipping frame without timestamp": "タイムスタンプのないフレームをスキップ",

		// Sequencer component
		"Dropping late frame at %.3f":                 "遅延フレーム (%.3f) を破棄",
		"Failed to write frame: %s":                   "フレームの書き込みに失敗しました: %s",
		"Output session completed: %d frames emitted": "出力セッション完了: %d フレームを出力",

		// Encoder component
		"Encoder started (pid %d) for %s %s":              "エンコーダーを起動しました (pid %d, %s %s)",
		"Encoder finished for %s (retries %d, forced %t)": "%s のエンコーダーが終了しました (再試行 %d, 強制 %t)",
		"Killing encoder (pid %d)":                        "エンコーダーを強制終了中 (pid %d)",
		"ffmpeg progress: %s":                             "ffmpeg 進捗: %s",
		"ffmpeg: %s":                                      "ffmpeg: %s",

		// Probe
		"Connected to %s": "%s に接続しました",

		// Warnings
		"Failed to acknowledge frame: %s":                         "フレームの確認応答に失敗しました: %s",
		"Timed out waiting for frame acknowledgement":             "フレームの確認応答待ちがタイムアウトしました",
		"Keepalive nudge failed: %s":                              "キープアライブ描画に失敗しました: %s",
		"Failed to dump frame %d: %s":                             "フレーム %d の保存に失敗しました: %s",
		"Failed to detach session %s: %s":                         "セッション %s の切断に失敗しました: %s",
		"Failed to stop screencast on session %s: %s":             "セッション %s のスクリーンキャスト停止に失敗しました: %s",
		"Failed to flush remaining frames: %s":                    "残りのフレームの書き出しに失敗しました: %s",
		"Encoder exited with code %d, reconnecting in %s (%d/%d)": "エンコーダーが終了コード %d で終了しました。%s 後に再接続します (%d/%d)",
		"Encoder input unavailable: %s":                           "エンコーダーへの入力ができません: %s",
		"Encoder was terminated":                                  "エンコーダーは強制終了されました",
		"Closing output writer: %s":                               "出力先のクローズに失敗しました: %s",
		"Closing sink input: %s":                                  "エンコーダー入力のクローズに失敗しました: %s",
		"Failed to close browser: %s":                             "ブラウザの終了に失敗しました: %s",
		"Probe of %s failed: %s, trying fallback":                 "%s の確認に失敗しました: %s。フォールバックを試行します",
		"Interrupted again, terminating encoder":                  "再度中断されました。エンコーダーを強制終了します",

		// Errors
		"Failed to open output: %s":                    "出力を開けませんでした: %s",
		"Failed to launch browser: %s":                 "ブラウザの起動に失敗しました: %s",
		"Failed to navigate: %s":                       "ページ移動に失敗しました: %s",
		"Failed to start capture: %s":                  "キャプチャの開始に失敗しました: %s",
		"Failed to create capture session for %s: %s":  "%s のキャプチャセッション作成に失敗しました: %s",
		"Failed to start screencast on session %s: %s": "セッション %s のスクリーンキャスト開始に失敗しました: %s",
		"Failed to restart encoder: %s":                "エンコーダーの再起動に失敗しました: %s",
		"Encoder failed for %s: %s":                    "%s のエンコーダーが失敗しました: %s",
		"Stream failed: %s":                            "配信に失敗しました: %s",
		"Health server failed: %s":                     "ヘルスサーバーが失敗しました: %s",
		"No healthy instance: %s":                      "正常なインスタンスがありません: %s",
	})
}
