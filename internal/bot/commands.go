package bot

import "strings"

// Команды бота
const (
	CommandStart  = "/start"
	CommandPlans  = "/plans"
	CommandStatus = "/status"
	CommandRenew  = "/renew"
	CommandExtend = "/extend"
	CommandHelp   = "/help"
)

// ParseCommand первый токен текста в нижнем регистре без суффикса @botname.
// ok=false, если текст не похож на команду.
func ParseCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), true
}
