// Команда backup выгружает задачи в age-файл и загружает их обратно.
//
//	backup keygen [--out identity.txt]
//	backup export --recipient age1... [--out tasks.age]
//	backup import --identity identity.txt [--in tasks.age] [--replace]
//
// import переписывает хранилище напрямую, поэтому сервер api на том же
// хранилище должен быть остановлен: его следующее сохранение затрёт
// восстановленные задачи.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"taskReminder/internal/app"
	"taskReminder/internal/backup"
	"taskReminder/internal/clock"
	"taskReminder/internal/config"
	"taskReminder/internal/logger"
	"taskReminder/internal/service"
	"time"

	"filippo.io/age"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `Использование: backup <команда> [флаги]

Команды:
  keygen   создать ключ age (--out файл, по умолчанию stdout)
  export   выгрузить задачи (--recipient age1..., --out файл)
  import   загрузить задачи (--identity файл, --in файл, --replace)

ВНИМАНИЕ: перед import остановите сервер api, работающий с тем же
хранилищем. Иначе его следующее сохранение затрёт восстановленные задачи.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "backup:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("ожидается команда: keygen, export или import")
	}

	switch args[0] {
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return nil
	case "keygen":
		return runKeygen(args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "import":
		return runImport(ctx, args[1:])
	default:
		return fmt.Errorf("неизвестная команда %q", args[0])
	}
}

func runKeygen(args []string) error {
	var out string
	flagSet := pflag.NewFlagSet("backup keygen", pflag.ContinueOnError)
	flagSet.StringVarP(&out, "out", "o", "-", "куда записать ключ (- для stdout)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("генерация ключа age: %w", err)
	}

	w, closeFn, err := openOutput(out, os.O_EXCL)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Fprintf(w, "# created: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "# public key: %s\n", identity.Recipient())
	fmt.Fprintln(w, identity)
	if out != "-" {
		fmt.Fprintf(os.Stderr, "public key: %s\n", identity.Recipient())
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	var configPath, out string
	var recipientKeys []string
	flagSet := pflag.NewFlagSet("backup export", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "config.yml", "путь к файлу конфигурации YAML")
	flagSet.StringSliceVarP(&recipientKeys, "recipient", "r", nil, "публичный ключ age1... (можно несколько)")
	flagSet.StringVarP(&out, "out", "o", "-", "файл архива (- для stdout)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	recipients, err := backup.ParseRecipients(recipientKeys)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore()

	w, closeFn, err := openOutput(out, os.O_TRUNC)
	if err != nil {
		return err
	}
	defer closeFn()

	tasks := store.List()
	if err := backup.Export(w, tasks, recipients, time.Now()); err != nil {
		return err
	}
	logger.Info("Backup: Задачи выгружены", zap.Int("count", len(tasks)), zap.Int("recipients", len(recipients)))
	return nil
}

func runImport(ctx context.Context, args []string) error {
	var configPath, identityPath, in string
	var replace bool
	flagSet := pflag.NewFlagSet("backup import", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "config.yml", "путь к файлу конфигурации YAML")
	flagSet.StringVarP(&identityPath, "identity", "i", "", "файл ключа age (обязателен)")
	flagSet.StringVar(&in, "in", "-", "файл архива (- для stdin)")
	flagSet.BoolVar(&replace, "replace", false, "заменить текущий список вместо слияния")
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "Использование: backup import --identity файл [--in файл] [--replace]")
		fmt.Fprintln(os.Stderr, "Сервер api на том же хранилище должен быть остановлен.")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if identityPath == "" {
		return errors.New("--identity обязателен")
	}

	identityFile, err := os.Open(identityPath)
	if err != nil {
		return fmt.Errorf("открытие ключа: %w", err)
	}
	identities, err := backup.ParseIdentities(identityFile)
	identityFile.Close()
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if in != "-" {
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("открытие архива: %w", err)
		}
		defer f.Close()
		r = f
	}

	tasks, err := backup.Import(r, identities...)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.Warn("Backup: Хранилище будет переписано, сервер api должен быть остановлен")
	added, err := backup.Restore(ctx, store, tasks, replace)
	if err != nil {
		return err
	}
	logger.Info("Backup: Задачи загружены",
		zap.Int("in_archive", len(tasks)),
		zap.Int("added", added),
		zap.Bool("replace", replace))
	return nil
}

// openStore открывает хранилище из конфигурации и загружает задачи
func openStore(ctx context.Context, configPath string) (*service.TaskStore, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Development); err != nil {
		return nil, nil, fmt.Errorf("инициализация логгера: %w", err)
	}

	store, closeFn, err := app.OpenStore(ctx, cfg, nil, clock.Real())
	if err != nil {
		return nil, nil, err
	}
	if err := store.Load(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, func() {
		closeFn()
		logger.Sync()
	}, nil
}

func openOutput(path string, flag int) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|flag, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("открытие %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
