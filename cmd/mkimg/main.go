// Command mkimg builds BOOTBOOT-compatible boot media: FAT16/FAT32 boot
// partitions, hybrid MBR+GPT+ISO9660 disk images, option-ROM-wrapped
// initrd payloads, and a kernel conformance checker.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/dargueta/mkimg/internal/diskimg"
	"github.com/dargueta/mkimg/internal/fat"
	"github.com/dargueta/mkimg/internal/hostfs"
	"github.com/dargueta/mkimg/internal/kernel"
	"github.com/dargueta/mkimg/internal/mkerrors"
	"github.com/dargueta/mkimg/internal/romwrap"
)

// knownCommands is the verb set dispatch accepts; anything else given as
// the first non-flag argument is a configuration error (spec.md's "bad
// verb" case), not the silent no-op the cli library's own help fallback
// would otherwise produce.
var knownCommands = map[string]bool{
	"disk": true, "fat16": true, "fat32": true, "rom": true, "check": true,
	"help": true, "h": true,
}

// firstVerb returns the first non-flag argument after the binary name, or
// "" if args carries none (bare invocation, or only flags like -h).
func firstVerb(args []string) string {
	for _, a := range args[1:] {
		if len(a) > 0 && a[0] != '-' {
			return a
		}
	}
	return ""
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("mkimg: ")

	if verb := firstVerb(os.Args); verb != "" && !knownCommands[verb] {
		err := mkerrors.Newf(mkerrors.Config, "unrecognized command %q", verb)
		log.Print(err.Error())
		os.Exit(err.Kind().ExitCode())
	}

	app := &cli.App{
		Name:  "mkimg",
		Usage: "BOOTBOOT mkimg utility",
		Commands: []*cli.Command{
			{
				Name:      "disk",
				Usage:     "create a hybrid disk/cdrom image from bootpart.bin",
				ArgsUsage: "SIZE_MIB OUT_PATH",
				Action:    diskAction,
			},
			{
				Name:      "fat16",
				Usage:     "create bootpart.bin (FAT16) from a directory",
				ArgsUsage: "SIZE_MIB SRC_DIR",
				Action:    fatAction(fat.FAT16),
			},
			{
				Name:      "fat32",
				Usage:     "create bootpart.bin (FAT32) from a directory",
				ArgsUsage: "SIZE_MIB SRC_DIR",
				Action:    fatAction(fat.FAT32),
			},
			{
				Name:   "rom",
				Usage:  "wrap initrd.bin into initrd.rom",
				Action: romAction,
			},
			{
				Name:      "check",
				Usage:     "validate an ELF64 or PE32+ kernel for BOOTBOOT compliance",
				ArgsUsage: "KERNEL_PATH",
				Action:    checkAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if mkErr, ok := err.(*mkerrors.Error); ok {
			log.Print(mkErr.Error())
			os.Exit(mkErr.Kind().ExitCode())
		}
		log.Fatal(err.Error())
	}
}

func diskAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return mkerrors.New(mkerrors.Config, "usage: mkimg disk SIZE_MIB OUT_PATH")
	}
	sizeMiB, convErr := strconv.Atoi(c.Args().Get(0))
	if convErr != nil {
		return mkerrors.Wrap(mkerrors.Config, "invalid size in MiB", convErr)
	}
	outPath := c.Args().Get(1)

	partition, _, partErr := hostfs.ReadOptional("bootpart.bin")
	if partErr != nil {
		return partErr
	}
	stage1, _, s1Err := hostfs.ReadOptional("../others/bootboot/boot.bin")
	if s1Err != nil {
		return s1Err
	}
	stage2, _, s2Err := hostfs.ReadOptional("../bootboot.bin")
	if s2Err != nil {
		return s2Err
	}

	disk, asmErr := diskimg.Assemble(diskimg.Options{
		Partition:        partition,
		PartitionIsFAT16: len(partition) > 0 && partition[0x39] == '1',
		Stage1:           stage1,
		Stage2:           stage2,
		DiskSizeBytes:    sizeMiB * 1024 * 1024,
		Now:              time.Now().UTC(),
	})
	if asmErr != nil {
		return asmErr
	}

	if err := os.WriteFile(outPath, disk, 0o644); err != nil {
		return mkerrors.Wrap(mkerrors.IO, fmt.Sprintf("writing %s", outPath), err)
	}

	fmt.Printf("wrote %s (%s)\n", outPath, humanize.IBytes(uint64(len(disk))))
	return nil
}

func fatAction(variant fat.Variant) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 2 {
			return mkerrors.New(mkerrors.Config, "usage: mkimg fat16|fat32 SIZE_MIB SRC_DIR")
		}
		sizeMiB, convErr := strconv.Atoi(c.Args().Get(0))
		if convErr != nil {
			return mkerrors.Wrap(mkerrors.Config, "invalid size in MiB", convErr)
		}
		srcDir := c.Args().Get(1)

		partition, err := fat.Create(variant, sizeMiB*1024*1024, srcDir, time.Now().UTC())
		if err != nil {
			return err
		}

		if writeErr := os.WriteFile("bootpart.bin", partition, 0o644); writeErr != nil {
			return mkerrors.Wrap(mkerrors.IO, "writing bootpart.bin", writeErr)
		}

		fmt.Printf("wrote bootpart.bin (%s)\n", humanize.IBytes(uint64(len(partition))))
		return nil
	}
}

func romAction(c *cli.Context) error {
	rom, err := romwrap.Wrap("initrd.bin")
	if err != nil {
		return err
	}
	if writeErr := os.WriteFile("initrd.rom", rom, 0o644); writeErr != nil {
		return mkerrors.Wrap(mkerrors.IO, "writing initrd.rom", writeErr)
	}
	fmt.Printf("wrote initrd.rom (%s)\n", humanize.IBytes(uint64(len(rom))))
	return nil
}

func checkAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return mkerrors.New(mkerrors.Config, "usage: mkimg check KERNEL_PATH")
	}
	report, err := kernel.Check(c.Args().Get(0))
	if err != nil {
		return err
	}

	fmt.Printf("File format: %s\n", report.Format)
	if report.Architecture != "" {
		fmt.Printf("Architecture: %s\n", report.Architecture)
	}
	if report.Failure != "" {
		fmt.Printf("%s\n", report.Failure)
		return nil
	}
	fmt.Println(report.Summary())
	return nil
}
