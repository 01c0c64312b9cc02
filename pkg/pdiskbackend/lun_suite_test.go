/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package pdiskbackend

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestPdiskBackend(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pdisk Backend Suite")
}

var _ = Describe("LUN", func() {
	var (
		fake     *fakeExecutor
		observer *recordingObserver
		ctx      context.Context
	)

	newLUN := func(id, proxy string, cfg BackendConfig) *LUN {
		b, err := NewBackend(proxy, cfg)
		Expect(err).NotTo(HaveOccurred())
		return NewLUN(id, b, NewCommandExecutor(fake, WithObserver(observer)))
	}

	BeforeEach(func() {
		fake = &fakeExecutor{}
		observer = &recordingObserver{}
		ctx = context.Background()
	})

	Context("lvm backend", func() {
		var lun *LUN

		BeforeEach(func() {
			lun = newLUN("vol-1", "proxy1", BackendConfig{Type: "lvm", VolumeName: "/dev/pdisk"})
		})

		It("creates a logical volume of the requested size", func() {
			fake.on("lvcreate", reply{output: `  Logical volume "vol-1" created`})
			_, err := lun.Execute(ctx, ActionCreate, Request{SizeMB: 2048})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.commandLines()).To(HaveLen(1))
			Expect(fake.commandLines()[0]).To(ContainSubstring("-L 2048M"))
			Expect(fake.commandLines()[0]).To(HaveSuffix("-n vol-1 pdisk"))
		})

		It("renders the iscsi transfer url", func() {
			res, err := lun.Execute(ctx, ActionGetTurl, Request{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Value).To(Equal("iscsi://proxy1:3260/iqn.2011-01.eu.stratuslab:vol-1:1"))
		})

		It("keeps deleting when the device mapper entry is gone", func() {
			fake.on("dmsetup", reply{output: "device-mapper: remove ioctl failed: No such device or address", code: 1}).
				on("lvremove", reply{output: `  Logical volume "vol-1" successfully removed`})
			_, err := lun.Execute(ctx, ActionDelete, Request{})
			Expect(err).NotTo(HaveOccurred())
			Expect(observer.outcomes).To(Equal([]Outcome{OutcomeBenign, OutcomeSucceeded}))
			Expect(fake.commandLines()[1]).To(ContainSubstring("lvremove -f /dev/pdisk/vol-1"))
		})

		It("exports the volume through its own tgt target file", func() {
			fake.on("/bin/sh", reply{output: "<target iqn.2011-01.eu.stratuslab:vol-1>\n    backing-store /dev/pdisk/vol-1\n</target>\n"})
			_, err := lun.Execute(ctx, ActionMap, Request{})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.calls).To(HaveLen(2))
			Expect(fake.calls[0]).To(Equal([]string{"/bin/sh", "-c", writeTarget, "add_target",
				"iqn.2011-01.eu.stratuslab:vol-1", "/dev/pdisk/vol-1", "/etc/stratuslab/iscsi.d/vol-1.conf"}))
			Expect(fake.commandLines()[1]).To(Equal("/usr/sbin/tgt-admin --update iqn.2011-01.eu.stratuslab:vol-1"))
		})

		It("fails the export when the target file was not written", func() {
			_, err := lun.Execute(ctx, ActionMap, Request{})
			var execErr *CommandExecutionError
			Expect(errors.As(err, &execErr)).To(BeTrue())
			Expect(execErr.Step).To(Equal(0))
			Expect(fake.calls).To(HaveLen(1))
		})

		It("unexports a target that is already gone", func() {
			fake.on("--delete", reply{output: "tgtadm: can't find the target", code: 22})
			_, err := lun.Execute(ctx, ActionUnmap, Request{})
			Expect(err).NotTo(HaveOccurred())
			Expect(observer.outcomes).To(Equal([]Outcome{OutcomeBenign, OutcomeSucceeded}))
			Expect(fake.commandLines()[1]).To(Equal("/bin/rm -f /etc/stratuslab/iscsi.d/vol-1.conf"))
		})

		It("refuses a snapshot without a size", func() {
			_, err := lun.Execute(ctx, ActionSnapshot, Request{NewVolumeID: "vol-2"})
			var invalid *InvalidRequestError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(fake.calls).To(BeEmpty())
		})
	})

	Context("ceph backend", func() {
		var lun *LUN

		BeforeEach(func() {
			lun = newLUN("img", "mon1", BackendConfig{Type: "ceph", VolumeName: "rbd"})
		})

		It("snapshots, protects and clones an image", func() {
			fake.on("snap protect", reply{output: "rbd: protecting snap failed: (16) Device or resource busy", code: 16})
			_, err := lun.Execute(ctx, ActionSnapshot, Request{NewVolumeID: "img2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(observer.commands).To(Equal([]string{"ceph/snapshot", "ceph/protect", "ceph/clone"}))
			Expect(fake.commandLines()[2]).To(Equal(
				"/usr/bin/rbd clone rbd/img@pdisk_clone_img2 rbd/img2 --id cloud"))
		})

		It("reports the image size in bytes", func() {
			fake.on("--format json", reply{output: `{"name":"img","size":1073741824,"objects":256}`})
			res, err := lun.Execute(ctx, ActionSize, Request{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Value).To(Equal("1073741824"))
		})
	})

	Context("gpfs backend", func() {
		It("tolerates a read-only parent when snapshotting", func() {
			lun := newLUN("f1", "localhost", BackendConfig{Type: "gpfs", VolumeName: "/gpfs/pdisk"})
			fake.on("mmclone snap", reply{output: "mmclone: Read-only file system", code: 1})
			_, err := lun.Execute(ctx, ActionSnapshot, Request{NewVolumeID: "f2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.commandLines()).To(Equal([]string{
				"/usr/lpp/mmfs/bin/mmclone snap /gpfs/pdisk/f1",
				"/usr/lpp/mmfs/bin/mmclone copy /gpfs/pdisk/f1 /gpfs/pdisk/f2",
				"/bin/chown oneadmin:cloud /gpfs/pdisk/f2",
			}))
		})
	})

	Context("netapp cluster backend", func() {
		It("has no size action", func() {
			lun := newLUN("l1", "filer", BackendConfig{Type: "NetApp-Cluster", VolumeName: "/vol/v",
				InitiatorGroup: "ig", Vserver: "svm", MgtUserName: "admin", MgtUserPrivateKey: "/k"})
			_, err := lun.Execute(ctx, ActionSize, Request{})
			var unsupported *UnsupportedActionError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(fake.calls).To(BeEmpty())
			Expect(observer.commands).To(BeEmpty())
		})
	})

	Context("unknown backend type", func() {
		It("fails with a configuration error listing the supported types", func() {
			_, err := NewBackend("proxy", BackendConfig{Type: "foo", VolumeName: "x"})
			var cfgErr *ConfigurationError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Section).To(Equal("proxy"))
			Expect(err.Error()).To(ContainSubstring("lvm, ceph, file, gpfs, netapp, netapp-7mode, netapp-cluster"))
		})
	})
})
