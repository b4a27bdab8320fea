package entity

import "fmt"

// Command names accepted by Execute.
const (
	CommandPress        = "press"
	CommandTurnOn       = "turn_on"
	CommandTurnOff      = "turn_off"
	CommandToggle       = "toggle"
	CommandSelectOption = "select_option"
	CommandOpen         = "open"
	CommandClose        = "close"
	CommandStop         = "stop"
	CommandSetValue     = "set_value"
	CommandLock         = "lock"
	CommandUnlock       = "unlock"
)

var platformCommands = map[Platform][]string{
	PlatformButton:       {CommandPress},
	PlatformSwitch:       {CommandTurnOn, CommandTurnOff, CommandToggle},
	PlatformSelect:       {CommandSelectOption},
	PlatformBinarySensor: nil,
	PlatformCover:        {CommandOpen, CommandClose, CommandStop, CommandSetValue},
	PlatformLock:         {CommandLock, CommandUnlock, CommandOpen},
}

// Commands lists the commands a platform accepts.
func Commands(p Platform) []string {
	return append([]string(nil), platformCommands[p]...)
}

// Execute runs a named command against e. value is only read by
// select_option and set_value, which require a string.
func Execute(e Entity, command string, value any) error {
	switch ent := e.(type) {
	case *Button:
		if command == CommandPress {
			return ent.Press()
		}
	case *Switch:
		switch command {
		case CommandTurnOn:
			return ent.TurnOn()
		case CommandTurnOff:
			return ent.TurnOff()
		case CommandToggle:
			return ent.Toggle()
		}
	case *Select:
		if command == CommandSelectOption {
			opt, err := stringValue(command, value)
			if err != nil {
				return err
			}
			return ent.SelectOption(opt)
		}
	case *Cover:
		switch command {
		case CommandOpen:
			return ent.Open()
		case CommandClose:
			return ent.Close()
		case CommandStop:
			return ent.Stop()
		case CommandSetValue:
			v, err := stringValue(command, value)
			if err != nil {
				return err
			}
			return ent.SetValue(v)
		}
	case *Lock:
		switch command {
		case CommandLock:
			return ent.Lock()
		case CommandUnlock:
			return ent.Unlock()
		case CommandOpen:
			return ent.Open()
		}
	}
	return fmt.Errorf("%w: %s %q", ErrUnsupportedCommand, e.Platform(), command)
}

func stringValue(command string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s wants a string, got %T", ErrInvalidCommandValue, command, value)
	}
	return s, nil
}
