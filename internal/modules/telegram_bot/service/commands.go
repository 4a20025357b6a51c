package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"signal_trader/internal/models"
)

const helpText = "Команды:\n" +
	"/show SYMBOL — настройки символа\n" +
	"/set SYMBOL lev|sl|act|cb|preset|dir|split VALUE\n" +
	"/set SYMBOL clear — сбросить SL/трейлинг на пресет\n" +
	"/mode BOTH|LONG_ONLY|SHORT_ONLY — глобальный режим\n" +
	"/reset SYMBOL — обнулить ноги\n" +
	"/symbols — известные символы"

// HandleCommand разбирает команду админа и возвращает текст ответа.
func (t *Telegram) HandleCommand(ctx context.Context, command, args string) string {
	fields := strings.Fields(args)

	switch strings.ToLower(command) {
	case "start", "help":
		return helpText

	case "show":
		if len(fields) != 1 {
			return "Формат: /show SYMBOL"
		}
		cfg, err := t.store.Get(fields[0])
		if err != nil {
			return "❗️ " + err.Error()
		}
		return formatSymbol(cfg, t.store.GlobalMode())

	case "set":
		if len(fields) == 2 && strings.EqualFold(fields[1], "clear") {
			return t.save(ctx, fields[0], models.SymbolUpdate{ClearOverrides: true})
		}
		if len(fields) != 3 {
			return "Формат: /set SYMBOL lev|sl|act|cb|preset|dir|split VALUE"
		}
		u, err := parseUpdate(fields[1], fields[2])
		if err != nil {
			return "❗️ " + err.Error()
		}
		return t.save(ctx, fields[0], u)

	case "mode":
		if len(fields) != 1 {
			return "Формат: /mode BOTH|LONG_ONLY|SHORT_ONLY"
		}
		m, err := models.ParseGlobalMode(fields[0])
		if err != nil {
			return "❗️ " + err.Error()
		}
		if err := t.store.SetGlobalMode(m); err != nil {
			return "❗️ " + err.Error()
		}
		return "✅ Глобальный режим: " + string(m)

	case "reset":
		if len(fields) != 1 {
			return "Формат: /reset SYMBOL"
		}
		cfg, err := t.store.Get(fields[0])
		if err != nil {
			return "❗️ " + err.Error()
		}
		t.store.ResetLegs(cfg.Symbol)
		return "✅ " + cfg.Symbol + ": ноги обнулены"

	case "symbols":
		syms := t.store.Symbols()
		if len(syms) == 0 {
			return "📭 Символов пока нет\nГлобальный режим: " + string(t.store.GlobalMode())
		}
		return fmt.Sprintf("📊 Символы (%d): %s\nГлобальный режим: %s",
			len(syms), strings.Join(syms, ", "), t.store.GlobalMode())
	}
	return "Неизвестная команда.\n\n" + helpText
}

func (t *Telegram) save(ctx context.Context, symbol string, u models.SymbolUpdate) string {
	cfg, err := t.store.Save(ctx, symbol, u)
	if err != nil {
		t.log.Warn("settings update rejected", zap.String("symbol", symbol), zap.Error(err))
		return "❗️ " + err.Error()
	}
	return "✅ Сохранено\n\n" + formatSymbol(cfg, t.store.GlobalMode())
}

func parseUpdate(field, value string) (models.SymbolUpdate, error) {
	var u models.SymbolUpdate
	switch strings.ToLower(field) {
	case "lev", "leverage":
		n, err := strconv.Atoi(value)
		if err != nil {
			return u, fmt.Errorf("плечо должно быть целым: %q", value)
		}
		u.Leverage = &n
	case "sl":
		f, err := parsePct(value)
		if err != nil {
			return u, err
		}
		u.StopLossPct = &f
	case "act":
		f, err := parsePct(value)
		if err != nil {
			return u, err
		}
		u.ActivationPct = &f
	case "cb":
		f, err := parsePct(value)
		if err != nil {
			return u, err
		}
		u.CallbackPct = &f
	case "preset":
		p := strings.ToLower(value)
		u.RiskPreset = &p
	case "dir":
		d, err := models.ParseDirection(value)
		if err != nil {
			return u, err
		}
		u.Direction = &d
	case "split":
		b, err := parseOnOff(value)
		if err != nil {
			return u, err
		}
		u.SplitEntry = &b
	default:
		return u, fmt.Errorf("неизвестное поле %q", field)
	}
	return u, nil
}

func parsePct(s string) (float64, error) {
	s = strings.TrimSuffix(strings.ReplaceAll(s, ",", "."), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("ожидается число: %q", s)
	}
	return v, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "вкл", "1", "true", "yes":
		return true, nil
	case "off", "выкл", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("ожидается on/off: %q", s)
}
