package constants

const (
	// Keys of the app-wide settings table
	SettingJWTSecret = "jwt_secret"

	// User-facing messages
	MsgSessionExpired   = "セッションが切れました。ページを更新してください。"
	MsgDuplicate        = "重複したデータです。"
	MsgReferenceMissing = "関連するデータが見つかりません。"
	MsgNotFound         = "データが見つかりません。"
	MsgOperationFailed  = "%sに失敗しました。"
	MsgConfirmQuestion  = "ほんとに？"
	MsgConfirmYes       = "本当！"
	MsgConfirmLater     = "あとで"
	MsgCelebrationTitle = "You DID it!"
	MsgDeleteDoConfirm  = "このDoを削除しますか？関連する達成記録も削除されます。"
	MsgDoLimitReached   = "Doは最大3つまでです。"

	// Operation names used in user-facing errors
	OpToggleAchievement = "達成状態の更新"
	OpCreateAchievement = "達成の記録"
	OpSaveMemo          = "メモの保存"
	OpLoadAchievements  = "達成記録の取得"
	OpLoadDos           = "Doの取得"
	OpSaveDo            = "Doの保存"
	OpDeleteDo          = "Doの削除"
	OpLoadProfile       = "プロフィールの取得"
	OpSaveProfile       = "プロフィールの保存"
	OpSignIn            = "ログイン"
	OpSignUp            = "新規登録"
	OpSignOut           = "ログアウト"
	OpChangePassword    = "パスワードの変更"
	OpLoadMessageSets   = "メッセージセットの取得"
	OpDeleteAccount     = "アカウントの削除"
)
