package app

// Command はサブコマンド名。
type Command string

const (
	// CommandServe はWebサーバー（ページ、認証ルート、BFFルート）を起動する。
	CommandServe Command = "serve"
	// CommandWorker は失効リストの定期クリーンアップを実行する。
	CommandWorker Command = "worker"
	// CommandMigrate は失効リストのスキーマを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの /health を確認する。
	// distrolessイメージにはcurlが無いためバイナリ自身で行う。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数が無い場合や未知のコマンドの場合はserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
